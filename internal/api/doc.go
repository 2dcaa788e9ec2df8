// Package api публикует REST интерфейс сервиса поверх internal/agent.
package api
