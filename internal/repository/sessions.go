package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vision-concierge/internal/domain"
)

// LoadContext fetches the conversation context for a session. A session with
// no persisted context returns (nil, nil); the caller starts a fresh one.
// The read is consistent so a turn always sees the previous turn's writes.
func (c *Client) LoadContext(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("repository: LoadContext: session id is required")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skContext},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: LoadContext: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	state, err := strAttr(out.Item, "state")
	if err != nil {
		return nil, fmt.Errorf("repository: LoadContext: %w", err)
	}
	var conv domain.ConversationContext
	if err := json.Unmarshal([]byte(state), &conv); err != nil {
		return nil, fmt.Errorf("repository: LoadContext decode state: %w", err)
	}
	return &conv, nil
}

// SaveContext replaces the persisted context for a session. The whole record
// is written as one JSON blob so a turn's slot updates land atomically.
func (c *Client) SaveContext(ctx context.Context, conv *domain.ConversationContext) error {
	if conv == nil {
		return errors.New("repository: SaveContext: context must not be nil")
	}
	if strings.TrimSpace(conv.SessionID) == "" {
		return errors.New("repository: SaveContext: session id is required")
	}

	state, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("repository: SaveContext encode state: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(conv.SessionID)},
			"SK":        &types.AttributeValueMemberS{Value: skContext},
			"sessionId": &types.AttributeValueMemberS{Value: conv.SessionID},
			"state":     &types.AttributeValueMemberS{Value: string(state)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveContext: %w", err)
	}
	return nil
}

// AppendTurn persists one completed user/assistant exchange.
func (c *Client) AppendTurn(ctx context.Context, sessionID, text, reply string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: AppendTurn: session id is required")
	}

	turn := newTurn(sessionID, text, reply)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: turn.PK},
			"SK":        &types.AttributeValueMemberS{Value: turn.SK},
			"sessionId": &types.AttributeValueMemberS{Value: turn.SessionID},
			"text":      &types.AttributeValueMemberS{Value: turn.Text},
			"reply":     &types.AttributeValueMemberS{Value: turn.Reply},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", turn.TTL)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// GetHistory returns the most recent turns for a session expanded into
// chronological chat messages, oldest first.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	// Reverse to chronological order before expanding into messages.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	msgs := make([]domain.ChatMessage, 0, 2*len(turns))
	for _, turn := range turns {
		msgs = append(msgs, domain.ChatMessage{Role: "user", Content: turn.Text})
		if turn.Reply != "" {
			msgs = append(msgs, domain.ChatMessage{Role: "assistant", Content: turn.Reply})
		}
	}
	return msgs, nil
}

func newTurn(sessionID, text, reply string) domain.Turn {
	return domain.Turn{
		PK:        sessionPK(sessionID),
		SK:        msgSK(time.Now()),
		SessionID: sessionID,
		Text:      text,
		Reply:     reply,
		TTL:       ttlValue(),
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Turn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	reply, _ := strAttr(item, "reply") // allow empty

	return domain.Turn{PK: pk, SK: sk, Text: text, Reply: reply}, nil
}
