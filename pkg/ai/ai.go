package ai

import "context"

// AiInterface 文本大模型客户端
type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
