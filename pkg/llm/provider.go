// Интерфейс провайдера, через который работает всё приложение.

package llm

import "context"

// Provider — контракт для любого chat-completion сервиса.
//
// Generate отправляет сообщения и возвращает ответ ассистента.
// Ошибки провайдера возвращаются как *Error с одной из категорий Err*.
type Provider interface {
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}
