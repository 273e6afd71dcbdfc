// Package vault stores the mapping between opaque tokens and the sensitive
// values they stand in for.
//
// Values are encrypted at rest (see internal/crypto) in an embedded bbolt
// database. A bounded in-memory S3-FIFO cache fronts the read path so a
// streaming response detokenizing the same recurring value many times does
// not pay a bbolt read + decrypt per occurrence.
//
// Interning is idempotent: minting a token for a (kind, value) pair that has
// already been interned returns the existing token and does not write a
// second first-intern activity record. The check-then-insert sequence is
// serialized by a single mutex so concurrent requests racing to intern the
// same value converge on one token and one activity record.
package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"guardianproxy/internal/crypto"
	"guardianproxy/internal/metrics"
)

const (
	tokensBucket   = "tokens"
	activityBucket = "activity"
)

// ErrNotFound is returned by internal lookups when a token is absent from
// the vault. Lookup surfaces this as (value, false, nil), not as an error —
// an unknown token is an expected outcome, not a failure.
var ErrNotFound = errors.New("vault: token not found")

// tokenRecord is the persisted, encrypted-at-rest form of one vault entry.
type tokenRecord struct {
	Kind      string    `json:"kind"`
	Sealed    []byte    `json:"sealed"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
	UseCount  int       `json:"useCount"`
}

// Activity is one first-intern event: the moment a (kind, value) pair was
// seen for the first time and a new token was minted for it.
type Activity struct {
	Seq         uint64    `json:"seq"`
	Token       string    `json:"token"`
	Kind        string    `json:"kind"`
	Provider    string    `json:"provider,omitempty"`
	Action      string    `json:"action"`
	MaskedValue string    `json:"maskedValue"`
	At          time.Time `json:"at"`
}

// activityProtected is the only Activity.Action value the vault records
// today: a token was minted for a value seen for the first time.
const activityProtected = "protected"

// Stats is a point-in-time summary of vault size, hot-cache occupancy, and
// usage breakdowns summed from the token records' use counts; the activity
// log is not consulted.
type Stats struct {
	TotalTokens      int            `json:"totalTokens"`
	TotalUses        int            `json:"totalUses"`
	CountsByKind     map[string]int `json:"countsByKind"`
	CountsByProvider map[string]int `json:"countsByProvider"`
	HotCacheSize     int            `json:"hotCacheSize"`
	HotCacheCap      int            `json:"hotCacheCap"`
}

// maskValue produces the masked_value recorded on an activity record: the
// first 3 and last 3 characters of value with the middle replaced by "***",
// or a bare "***" when value is too short to mask partially.
func maskValue(value string) string {
	r := []rune(value)
	if len(r) <= 6 {
		return "***"
	}
	return string(r[:3]) + "***" + string(r[len(r)-3:])
}

// Vault is the token ↔ value store.
type Vault struct {
	db    *bolt.DB
	core  *crypto.Core
	cache *hotCache
	m     *metrics.Metrics

	// internMu serializes the check-then-insert sequence of Intern so the
	// "exactly one first-intern activity event per (value, kind)" invariant
	// holds under concurrent callers.
	internMu sync.Mutex
}

// Open opens (creating if absent) the bbolt database at dbPath, using core
// to encrypt/decrypt stored values and cacheCapacity for the in-memory hot
// read layer. Pass a nil m to disable metrics collection.
func Open(dbPath string, core *crypto.Core, cacheCapacity int, m *metrics.Metrics) (*Vault, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", dbPath, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(tokensBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(activityBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("vault: create buckets: %w", err)
	}

	return &Vault{
		db:    db,
		core:  core,
		cache: newHotCache(cacheCapacity),
		m:     m,
	}, nil
}

// Close releases the underlying bbolt handle.
func (v *Vault) Close() error {
	return v.db.Close()
}

// Intern returns the token for (kind, value, provider), minting and
// persisting a new one on first sight. Calling Intern again with the same
// (kind, value) pair returns the identical token, bumps its use_count and
// last_used, and does not record a second activity event — isNew reports
// which case occurred so callers can drive "new item" counters correctly.
func (v *Vault) Intern(kind, value, provider string) (token string, isNew bool, err error) {
	sum := sha256.Sum256([]byte(value))
	hash12 := hex.EncodeToString(sum[:])[:12]
	token = FormatToken(kind, hash12)

	v.internMu.Lock()
	defer v.internMu.Unlock()

	now := time.Now().UTC()

	rec, err := v.readRecord(token)
	if err == nil {
		rec.LastUsed = now
		rec.UseCount++
		data, merr := json.Marshal(rec)
		if merr != nil {
			return "", false, fmt.Errorf("vault: marshal record: %w", merr)
		}
		if err := v.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket([]byte(tokensBucket)).Put([]byte(token), data)
		}); err != nil {
			return "", false, fmt.Errorf("vault: update use count for %s: %w", token, err)
		}
		return token, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}

	sealed, err := v.core.Encrypt([]byte(value))
	if err != nil {
		return "", false, fmt.Errorf("vault: encrypt value for %s: %w", token, err)
	}
	newRec := tokenRecord{
		Kind:      kind,
		Sealed:    sealed,
		Provider:  provider,
		CreatedAt: now,
		LastUsed:  now,
		UseCount:  1,
	}
	data, err := json.Marshal(newRec)
	if err != nil {
		return "", false, fmt.Errorf("vault: marshal record: %w", err)
	}

	if err := v.db.Update(func(tx *bolt.Tx) error {
		tokens := tx.Bucket([]byte(tokensBucket))
		if err := tokens.Put([]byte(token), data); err != nil {
			return err
		}
		activity := tx.Bucket([]byte(activityBucket))
		seq, err := activity.NextSequence()
		if err != nil {
			return err
		}
		act := Activity{
			Seq:         seq,
			Token:       token,
			Kind:        kind,
			Provider:    provider,
			Action:      activityProtected,
			MaskedValue: maskValue(value),
			At:          now,
		}
		actData, err := json.Marshal(act)
		if err != nil {
			return err
		}
		return activity.Put(seqKey(seq), actData)
	}); err != nil {
		return "", false, fmt.Errorf("vault: persist intern for %s: %w", token, err)
	}

	v.cache.Put(token, value)
	if v.m != nil {
		v.m.VaultInterns.Add(1)
	}
	return token, true, nil
}

// Lookup returns the plaintext value for token, if it exists in the vault.
// A token not present in the vault, or whose stored value fails to
// decrypt, is reported as ("", false, nil).
func (v *Vault) Lookup(token string) (string, bool, error) {
	if v.m != nil {
		v.m.VaultLookups.Add(1)
	}

	kindHint := kindFromToken(token)

	if value, hit := v.cache.Get(token); hit {
		if v.m != nil {
			v.m.RecordCacheHit(kindHint)
		}
		return value, true, nil
	}

	rec, err := v.readRecord(token)
	if errors.Is(err, ErrNotFound) {
		if v.m != nil {
			v.m.RecordCacheMiss(kindHint)
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	plain, err := v.core.Decrypt(rec.Sealed)
	if err != nil {
		// An undecryptable entry is treated as an unknown token.
		if v.m != nil {
			v.m.RecordCacheMiss(kindHint)
		}
		return "", false, nil
	}

	v.cache.Put(token, string(plain))
	if v.m != nil {
		v.m.RecordCacheMiss(kindHint)
	}
	return string(plain), true, nil
}

// AllMappings streams every (token, kind, value) triple in the vault to fn,
// in bbolt's key order. Iteration stops and AllMappings returns fn's error
// if fn returns a non-nil error.
func (v *Vault) AllMappings(fn func(token, kind, value string) error) error {
	return v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tokensBucket))
		return b.ForEach(func(k, data []byte) error {
			var rec tokenRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("vault: corrupt record for %s: %w", k, err)
			}
			plain, err := v.core.Decrypt(rec.Sealed)
			if err != nil {
				return fmt.Errorf("vault: decrypt %s: %w", k, err)
			}
			return fn(string(k), rec.Kind, string(plain))
		})
	})
}

// Stats returns a point-in-time summary of vault size, hot-cache size, and
// usage broken down by kind and provider. Total uses and the breakdowns are
// derived from the token records (use_count), not the activity log, since
// the activity log only ever gains one row per token (first intern) while
// use_count keeps accumulating on every repeat intern.
func (v *Vault) Stats() (Stats, error) {
	total := 0
	totalUses := 0
	byKind := map[string]int{}
	byProvider := map[string]int{}

	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tokensBucket))
		total = b.Stats().KeyN
		return b.ForEach(func(_, data []byte) error {
			var rec tokenRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("vault: corrupt record: %w", err)
			}
			totalUses += rec.UseCount
			byKind[rec.Kind] += rec.UseCount
			if rec.Provider != "" {
				byProvider[rec.Provider] += rec.UseCount
			}
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalTokens:      total,
		TotalUses:        totalUses,
		CountsByKind:     byKind,
		CountsByProvider: byProvider,
		HotCacheSize:     v.cache.Len(),
		HotCacheCap:      v.cache.capacity,
	}, nil
}

// RecentActivity returns up to n of the most recently recorded first-intern
// events, newest first.
func (v *Vault) RecentActivity(n int) ([]Activity, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []Activity
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(activityBucket))
		c := b.Cursor()
		for k, data := c.Last(); k != nil && len(out) < n; k, data = c.Prev() {
			var act Activity
			if err := json.Unmarshal(data, &act); err != nil {
				return fmt.Errorf("vault: corrupt activity record for %s: %w", k, err)
			}
			out = append(out, act)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readRecord reads and decodes the raw token record, returning ErrNotFound
// if token is absent.
func (v *Vault) readRecord(token string) (tokenRecord, error) {
	var rec tokenRecord
	var found bool
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tokensBucket))
		data := b.Get([]byte(token))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return tokenRecord{}, fmt.Errorf("vault: read %s: %w", token, err)
	}
	if !found {
		return tokenRecord{}, ErrNotFound
	}
	return rec, nil
}

// seqKey formats a bbolt sequence number as a 20-digit zero-padded decimal
// key, so byte order matches sequence order.
func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

// kindFromToken extracts the <KIND4> segment from a well-formed token, for
// use as a metrics label. The hash segment is always exactly 12 lowercase
// hex digits, so it is stripped from the tail rather than split on "_" (the
// kind segment may itself contain an underscore, e.g. "DRV_"). Returns ""
// for malformed input.
func kindFromToken(token string) string {
	if len(token) < len(tokenOpen)+len(tokenClose) {
		return ""
	}
	rest := token[len(tokenOpen) : len(token)-len(tokenClose)]
	const hashLen = 12
	if len(rest) < hashLen+2 || rest[len(rest)-hashLen-1] != '_' {
		return ""
	}
	return rest[:len(rest)-hashLen-1]
}
