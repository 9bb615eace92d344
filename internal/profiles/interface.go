package profiles

import "context"

// ProfileClient resolves player identifiers to display nicknames.
type ProfileClient interface {
	GetNick(ctx context.Context, playerID string) (string, error)
}
