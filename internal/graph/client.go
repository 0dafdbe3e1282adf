package graph

import "context"

// Client is the narrow Microsoft Graph surface required by teams-export.
type Client interface {
	// ListChats returns every chat the signed-in user can read, with
	// members expanded. Pagination is handled internally.
	ListChats(ctx context.Context) ([]ChatSummary, error)
	// ListMessages returns one page of messages for a chat, newest first.
	// An empty cursor requests the first page; NextCursor is opaque and
	// empty on the last page.
	ListMessages(ctx context.Context, chatID, cursor string, pageSize int) (MessagePage, error)
}
