package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"brandkit/internal/infra"
	"brandkit/internal/sqlinline"
)

// ProviderReplicate names the prediction API token row.
const ProviderReplicate = "replicate"

// ErrNoToken is returned by Require when no token is stored or configured.
var ErrNoToken = errors.New("prediction api token is not configured")

// Store reads and writes provider tokens in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// PredictionToken returns the stored prediction API token, or "" when none is stored.
func (s *Store) PredictionToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderReplicate)
}

// ResolvePredictionToken prefers configured over the stored token and fails when both are blank.
func (s *Store) ResolvePredictionToken(ctx context.Context, configured string) (string, error) {
	if t := strings.TrimSpace(configured); t != "" {
		return t, nil
	}
	t, err := s.PredictionToken(ctx)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", ErrNoToken
	}
	return t, nil
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectPredictionToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetPredictionToken upserts the prediction API token.
func (s *Store) SetPredictionToken(ctx context.Context, token string, props map[string]any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("prediction api token is required")
	}
	return s.upsert(ctx, ProviderReplicate, token, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertPredictionToken, provider, token, raw)
	return err
}
