package openai

import (
	"context"
	"errors"
)

// ChatClient calls /chat/completions with a single user message.
type ChatClient struct {
	c *Client
}

// NewChatClient creates a chat client on c.
func NewChatClient(c *Client) *ChatClient {
	return &ChatClient{c: c}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Temperature is a pointer so that zero is still sent.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as the user message and returns the first choice's text.
func (c *ChatClient) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	req := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	}
	var resp chatResponse
	if err := c.c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
