package storage

import (
	"context"
	"fmt"
	"strconv"
)

// Prefs reads typed values from a KV. A missing key yields the caller's
// default; a value that does not parse yields ErrMalformedValue.
type Prefs struct {
	kv KV
}

func NewPrefs(kv KV) *Prefs {
	return &Prefs{kv: kv}
}

func (p *Prefs) String(ctx context.Context, key, def string) (string, bool, error) {
	value, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return def, false, nil
	}
	return value, true, nil
}

func (p *Prefs) Int(ctx context.Context, key string, def int) (int, error) {
	value, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrMalformedValue, key, value)
	}
	return parsed, nil
}

func (p *Prefs) Int64(ctx context.Context, key string, def int64) (int64, error) {
	value, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrMalformedValue, key, value)
	}
	return parsed, nil
}

func (p *Prefs) Bool(ctx context.Context, key string, def bool) (bool, error) {
	value, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrMalformedValue, key, value)
	}
	return parsed, nil
}

func (p *Prefs) Edit() *Editor {
	return &Editor{
		kv:   p.kv,
		puts: make(map[string]string),
	}
}

// Editor collects changes; Commit applies them as one batch.
type Editor struct {
	kv      KV
	puts    map[string]string
	deletes []string
}

func (e *Editor) PutString(key, value string) *Editor {
	return e.set(key, value)
}

func (e *Editor) PutInt(key string, value int) *Editor {
	return e.set(key, strconv.Itoa(value))
}

func (e *Editor) PutInt64(key string, value int64) *Editor {
	return e.set(key, strconv.FormatInt(value, 10))
}

func (e *Editor) PutBool(key string, value bool) *Editor {
	return e.set(key, strconv.FormatBool(value))
}

// set makes the last call for a key win over an earlier Remove.
func (e *Editor) set(key, value string) *Editor {
	kept := e.deletes[:0]
	for _, deleted := range e.deletes {
		if deleted != key {
			kept = append(kept, deleted)
		}
	}
	e.deletes = kept
	e.puts[key] = value
	return e
}

func (e *Editor) Remove(key string) *Editor {
	delete(e.puts, key)
	e.deletes = append(e.deletes, key)
	return e
}

func (e *Editor) Commit(ctx context.Context) error {
	batch := Batch{Puts: e.puts, Deletes: e.deletes}
	if batch.Empty() {
		return nil
	}
	return e.kv.Apply(ctx, batch)
}
