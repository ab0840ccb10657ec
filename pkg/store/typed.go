package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// PendingTokenState records a relay token that could not be pushed to the
// secure channel yet.
//
// While NeedsUpdate is true, Token holds the most recently issued value.
type PendingTokenState struct {
	Token       string `json:"token"`
	NeedsUpdate bool   `json:"needs_update"`
}

// GetString returns the value of key. Absent keys, empty values and the
// legacy placeholder all report ok=false.
func GetString(ctx context.Context, s Store, key string) (string, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if v == "" || v == LegacyInvalid {
		return "", false, nil
	}
	return v, true, nil
}

// GetBool returns the boolean stored under key, or def when absent.
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return b, nil
}

// SetBool stores a boolean under key.
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}

// FirstTimeDone reports whether first-time initialization has completed for
// camera. Absence of the flag means false.
func FirstTimeDone(ctx context.Context, s Store, camera string) (bool, error) {
	return GetBool(ctx, s, FirstTimeDoneKey(camera), false)
}

// SetFirstTimeDone records the first-time flag for camera.
func SetFirstTimeDone(ctx context.Context, s Store, camera string, done bool) error {
	return SetBool(ctx, s, FirstTimeDoneKey(camera), done)
}

// NotificationsEnabled returns the user's notification preference.
// It defaults to enabled.
func NotificationsEnabled(ctx context.Context, s Store) (bool, error) {
	return GetBool(ctx, s, KeyNotificationsEnabled, true)
}

// UserCredentials returns the decoded user credentials blob.
func UserCredentials(ctx context.Context, s Store) ([]byte, bool, error) {
	v, ok, err := GetString(ctx, s, KeyUserCredentials)
	if err != nil || !ok {
		return nil, false, err
	}
	creds, err := base64.StdEncoding.DecodeString(v)
	if err != nil || len(creds) == 0 {
		return nil, false, nil
	}
	return creds, true, nil
}

// SetUserCredentials stores the credentials blob base64-encoded.
func SetUserCredentials(ctx context.Context, s Store, creds []byte) error {
	return s.Set(ctx, KeyUserCredentials, base64.StdEncoding.EncodeToString(creds))
}

// PendingToken returns the persisted pending token state.
func PendingToken(ctx context.Context, s Store) (PendingTokenState, error) {
	var st PendingTokenState
	v, ok, err := s.Get(ctx, KeyPendingToken)
	if err != nil || !ok {
		return st, err
	}
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return PendingTokenState{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, KeyPendingToken, err)
	}
	return st, nil
}

// SetPendingToken makes token the current relay token and marks it as still
// needing to be pushed to the secure channel.
//
// The relay token is written before the flag so that a reader observing
// NeedsUpdate=true always finds the latest token.
func SetPendingToken(ctx context.Context, s Store, token string) error {
	if err := s.Set(ctx, KeyRelayToken, token); err != nil {
		return err
	}
	return putPending(ctx, s, PendingTokenState{Token: token, NeedsUpdate: true})
}

// CommitToken records token as the current relay token with nothing pending.
func CommitToken(ctx context.Context, s Store, token string) error {
	if err := s.Set(ctx, KeyRelayToken, token); err != nil {
		return err
	}
	return putPending(ctx, s, PendingTokenState{Token: token})
}

// ClearPendingToken clears the pending flag, but only if the pending token is
// still token. It reports whether the flag was cleared by this call.
func ClearPendingToken(ctx context.Context, s Store, token string) (bool, error) {
	cleared := false
	err := s.Update(ctx, KeyPendingToken, func(old string, ok bool) (string, bool, error) {
		if !ok {
			return "", false, nil
		}
		var st PendingTokenState
		if err := json.Unmarshal([]byte(old), &st); err != nil {
			return "", false, fmt.Errorf("%w: %s: %v", ErrInvalidValue, KeyPendingToken, err)
		}
		if !st.NeedsUpdate || st.Token != token {
			return old, true, nil
		}
		st.NeedsUpdate = false
		cleared = true
		b, err := json.Marshal(st)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	})
	if err != nil {
		return false, err
	}
	return cleared, nil
}

func putPending(ctx context.Context, s Store, st PendingTokenState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyPendingToken, string(b))
}

// PairedCameras returns the names of paired cameras, sorted.
func PairedCameras(ctx context.Context, s Store) ([]string, error) {
	v, ok, err := s.Get(ctx, KeyPairedCameras)
	if err != nil || !ok {
		return nil, err
	}
	return decodeCameras(v)
}

// AddPairedCamera adds camera to the paired list.
func AddPairedCamera(ctx context.Context, s Store, camera string) error {
	return updateCameras(ctx, s, func(set map[string]struct{}) {
		set[camera] = struct{}{}
	})
}

// RemovePairedCamera removes camera from the paired list.
func RemovePairedCamera(ctx context.Context, s Store, camera string) error {
	return updateCameras(ctx, s, func(set map[string]struct{}) {
		delete(set, camera)
	})
}

func updateCameras(ctx context.Context, s Store, mutate func(map[string]struct{})) error {
	return s.Update(ctx, KeyPairedCameras, func(old string, ok bool) (string, bool, error) {
		var names []string
		if ok {
			var err error
			if names, err = decodeCameras(old); err != nil {
				return "", false, err
			}
		}
		set := make(map[string]struct{}, len(names)+1)
		for _, n := range names {
			set[n] = struct{}{}
		}
		mutate(set)
		if len(set) == 0 {
			return "", false, nil
		}
		out := make([]string, 0, len(set))
		for n := range set {
			out = append(out, n)
		}
		sort.Strings(out)
		b, err := json.Marshal(out)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	})
}

func decodeCameras(v string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, KeyPairedCameras, err)
	}
	sort.Strings(names)
	return names, nil
}
