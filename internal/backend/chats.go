package backend

import (
	"context"
	"net/http"

	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

// ChatSummary is one entry of the /fullchat response.
type ChatSummary struct {
	ConvToken    string         `json:"convtoken"`
	Conversation transcript.Raw `json:"conversation"`
}

// ListQuery selects whose chats /fullchat returns. Exactly one field is used,
// checked in the order UserToken, Email, Username.
type ListQuery struct {
	UserToken string
	Email     string
	Username  string
}

func (q ListQuery) params() map[string]string {
	switch {
	case q.UserToken != "":
		return map[string]string{"usertoken": q.UserToken}
	case q.Email != "":
		return map[string]string{"email": q.Email}
	case q.Username != "":
		return map[string]string{"username": q.Username}
	}
	return nil
}

// FlowRequest is the body of POST /flow.
type FlowRequest struct {
	Question  string `json:"question"`
	ConvToken string `json:"convtoken"`
	UserToken string `json:"usertoken"`
}

type chatsResponse struct {
	Chats []ChatSummary `json:"chats"`
}

type conversationResponse struct {
	Conversation transcript.Raw `json:"conversation"`
}

// ListChats calls GET /fullchat.
func (c *Client) ListChats(ctx context.Context, q ListQuery) ([]ChatSummary, error) {
	var out chatsResponse
	if err := c.do(ctx, get("list chats", "/fullchat", q.params()), &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// GetConversation calls GET /conversation.
func (c *Client) GetConversation(ctx context.Context, userToken, convToken string) (transcript.Raw, error) {
	var out conversationResponse
	err := c.do(ctx, get("get conversation", "/conversation", map[string]string{
		"usertoken": userToken,
		"convtoken": convToken,
	}), &out)
	if err != nil {
		return nil, err
	}
	return out.Conversation, nil
}

// Ask calls POST /flow and returns the conversation as the backend now holds it.
func (c *Client) Ask(ctx context.Context, req FlowRequest) (transcript.Raw, error) {
	var out conversationResponse
	err := c.do(ctx, call{op: "send message", method: http.MethodPost, path: "/flow", body: req}, &out)
	if err != nil {
		return nil, err
	}
	return out.Conversation, nil
}

// DeleteConversation calls DELETE /del-conv.
func (c *Client) DeleteConversation(ctx context.Context, userToken, convToken string) error {
	return c.do(ctx, call{
		op:     "delete conversation",
		method: http.MethodDelete,
		path:   "/del-conv",
		query: map[string]string{
			"usertoken": userToken,
			"convtoken": convToken,
		},
	}, nil)
}
