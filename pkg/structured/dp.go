package structured

import (
	"fmt"
	"strings"
)

// DPRecommendation — рекомендованная дисциплинарная практика.
type DPRecommendation struct {
	RecommendedDP string `json:"recommended_dp"`
	Reason        string `json:"reason"`
}

// DecodeDP разбирает ответ модели с рекомендацией.
//
// Оба поля обязательны и не должны быть пустыми.
func DecodeDP(content string) (DPRecommendation, error) {
	doc, err := Decode(content)
	if err != nil {
		return DPRecommendation{}, err
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return DPRecommendation{}, fmt.Errorf("dp recommendation must be an object, got %T", doc)
	}

	dp, _ := obj["recommended_dp"].(string)
	reason, _ := obj["reason"].(string)
	dp = strings.TrimSpace(dp)
	reason = strings.TrimSpace(reason)

	if dp == "" || reason == "" {
		return DPRecommendation{}, fmt.Errorf("dp recommendation requires recommended_dp and reason")
	}

	return DPRecommendation{RecommendedDP: dp, Reason: reason}, nil
}
