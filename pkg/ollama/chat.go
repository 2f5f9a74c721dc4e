package ollama

import "context"

// ChatClient generates answers through /api/chat without streaming.
type ChatClient struct {
	c *Client
}

// NewChatClient creates an Ollama chat client.
func NewChatClient(c *Client) *ChatClient {
	return &ChatClient{c: c}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type chatResp struct {
	Message message `json:"message"`
}

// Generate sends prompt as a single user message.
func (c *ChatClient) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	req := chatReq{
		Model:    model,
		Messages: []message{{Role: "user", Content: prompt}},
	}
	req.Options.Temperature = temperature

	var resp chatResp
	if err := c.c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
