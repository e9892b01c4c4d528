package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/memorial-crm/internal/pkg/kana"
)

// RedisIndex stores records as JSON in a hash and keeps one set of objectIDs
// per character bigram of every searchable attribute. A query narrows the
// candidates with SINTER over its bigrams and confirms each candidate with a
// folded substring match, so results agree with MemoryIndex.
//
// Keys, for index name n:
//
//	idx:n:objects           hash objectID -> record JSON
//	idx:n:tok:<bigram>      set of objectIDs
//	idx:n:obj:<objectID>    set of bigrams indexed for the object
type RedisIndex struct {
	client   redis.UniversalClient
	prefix   string
	settings Settings
}

// NewRedisIndex creates an index under the given name.
func NewRedisIndex(client redis.UniversalClient, name string) *RedisIndex {
	return &RedisIndex{
		client:   client,
		prefix:   "idx:" + name,
		settings: DefaultSettings(),
	}
}

func (ri *RedisIndex) objectsKey() string         { return ri.prefix + ":objects" }
func (ri *RedisIndex) tokenKey(tok string) string { return ri.prefix + ":tok:" + tok }
func (ri *RedisIndex) objTokensKey(id string) string {
	return ri.prefix + ":obj:" + id
}

func (ri *RedisIndex) SetSettings(_ context.Context, s Settings) error {
	ri.settings = s
	return nil
}

func (ri *RedisIndex) SaveObjects(ctx context.Context, records []Record) error {
	for _, r := range records {
		if r.ObjectID == "" {
			return ErrMissingObjectID
		}
	}
	for _, r := range records {
		if err := ri.save(ctx, r); err != nil {
			return fmt.Errorf("save object %s: %w", r.ObjectID, err)
		}
	}
	return nil
}

func (ri *RedisIndex) save(ctx context.Context, r Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	tokens := ri.recordTokens(r)
	return ri.rewriteObject(ctx, r.ObjectID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, ri.objectsKey(), r.ObjectID, body)
		if len(tokens) == 0 {
			return
		}
		members := make([]any, len(tokens))
		for i, tok := range tokens {
			pipe.SAdd(ctx, ri.tokenKey(tok), r.ObjectID)
			members[i] = tok
		}
		pipe.SAdd(ctx, ri.objTokensKey(r.ObjectID), members...)
	})
}

func (ri *RedisIndex) DeleteObject(ctx context.Context, objectID string) error {
	err := ri.rewriteObject(ctx, objectID, func(pipe redis.Pipeliner) {
		pipe.HDel(ctx, ri.objectsKey(), objectID)
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectID, err)
	}
	return nil
}

// maxWatchRetries bounds optimistic retries when another writer touches the
// same object between the read and the commit.
const maxWatchRetries = 10

// rewriteObject drops the object's bigram memberships and queues write in
// one transaction. The token list is read under WATCH, so a concurrent
// writer of the same object forces a retry instead of leaving memberships
// that no token list tracks.
func (ri *RedisIndex) rewriteObject(ctx context.Context, objectID string, write func(pipe redis.Pipeliner)) error {
	key := ri.objTokensKey(objectID)
	txf := func(tx *redis.Tx) error {
		old, err := tx.SMembers(ctx, key).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, tok := range old {
				pipe.SRem(ctx, ri.tokenKey(tok), objectID)
			}
			pipe.Del(ctx, key)
			write(pipe)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := ri.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (ri *RedisIndex) Search(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	q = q.normalized()
	ts := terms(q.Text)

	candidates, err := ri.candidates(ctx, ts)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	matches := make([]scored, 0, len(candidates))
	for _, r := range candidates {
		if score, ok := rank(r, ts, ri.settings.SearchableAttributes); ok {
			matches = append(matches, scored{rec: r, score: score})
		}
	}

	res := paginate(matches, q)
	res.ProcessingTimeMS = int(time.Since(start).Milliseconds())
	return res, nil
}

// candidates loads the records that may match. Terms shorter than two runes
// have no bigram, so any such term falls back to loading every object.
func (ri *RedisIndex) candidates(ctx context.Context, ts []string) ([]Record, error) {
	var keys []string
	seen := make(map[string]bool)
	for _, t := range ts {
		grams := bigrams(t)
		if len(grams) == 0 {
			return ri.all(ctx)
		}
		for _, g := range grams {
			if !seen[g] {
				seen[g] = true
				keys = append(keys, ri.tokenKey(g))
			}
		}
	}
	if len(keys) == 0 {
		return ri.all(ctx)
	}

	ids, err := ri.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := ri.client.HMGet(ctx, ri.objectsKey(), ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (ri *RedisIndex) all(ctx context.Context) ([]Record, error) {
	vals, err := ri.client.HGetAll(ctx, ri.objectsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for _, s := range vals {
		var r Record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (ri *RedisIndex) recordTokens(r Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range ri.settings.SearchableAttributes {
		for _, word := range terms(r.attribute(a)) {
			for _, g := range bigrams(word) {
				if !seen[g] {
					seen[g] = true
					out = append(out, g)
				}
			}
		}
	}
	return out
}

// bigrams splits a folded word into overlapping two-rune grams.
func bigrams(word string) []string {
	runes := []rune(kana.Fold(word))
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
