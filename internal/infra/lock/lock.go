// Package lock provides named mutexes: locks keyed by an application chosen
// string rather than a row.
package lock

import "context"

// Guard releases a held lock. Release is safe to call more than once.
type Guard interface {
	Release()
}

// NamedMutex serializes critical sections sharing the same key. Different
// keys never block each other.
type NamedMutex interface {
	Acquire(ctx context.Context, key string) (Guard, error)
}

// CampaignKey is the lock key that serializes settlement of one campaign.
func CampaignKey(campaignID string) string {
	return "charity-allocation:" + campaignID
}
