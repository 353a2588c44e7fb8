package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"concha-api/internal/models"
	"concha-api/internal/problem"
	"concha-api/internal/storage"
)

// audioKeyPattern is the reversible blob naming scheme for audio records.
// Every key in the audio bucket must decode back to its session id.
var audioKeyPattern = regexp.MustCompile(`^session_(\d+)-audio\.json$`)

// AudioObjectKey derives the blob key for a session's audio record.
func AudioObjectKey(sessionID int64) string {
	return fmt.Sprintf("session_%d-audio.json", sessionID)
}

// SessionIDFromKey reverses AudioObjectKey. Keys outside the naming scheme
// yield a format error.
func SessionIDFromKey(key string) (int64, error) {
	match := audioKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return 0, fmt.Errorf("blob key %q does not conform to the audio naming scheme", key)
	}
	sessionID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("blob key %q does not conform to the audio naming scheme", key)
	}
	return sessionID, nil
}

// AudioService implements audio record operations on top of the audio blob
// bucket. There is no relational table behind these records; the bucket
// namespace is the store and the key encodes the natural key.
type AudioService struct {
	blobs storage.ObjectStore
}

// NewAudioService wires the service with its blob store.
func NewAudioService(blobs storage.ObjectStore) *AudioService {
	return &AudioService{blobs: blobs}
}

func audioNotFoundError(sessionID int64) error {
	return problem.NewNotFound(fmt.Sprintf("No audio file exists with session_id '%d'.", sessionID))
}

// Create stores a new audio record after checking the session id against
// every existing key. The check is a read-then-write with no transactional
// guard, so two concurrent creates of the same session id can both pass it;
// the backing bucket has no uniqueness constraint to catch that. Known
// limitation.
func (s *AudioService) Create(ctx context.Context, audio models.Audio) (models.Audio, error) {
	existing, err := s.blobs.List(ctx)
	if err != nil {
		return models.Audio{}, fmt.Errorf("list audio blobs: %w", err)
	}
	for _, key := range existing {
		sessionID, err := SessionIDFromKey(key)
		if err != nil {
			return models.Audio{}, err
		}
		if sessionID == audio.SessionID {
			return models.Audio{}, problem.NewValidation(
				fmt.Sprintf("Audio file with session_id %d already exists.", audio.SessionID))
		}
	}
	return s.write(ctx, audio)
}

// Get fetches and decodes the audio record for a session id.
func (s *AudioService) Get(ctx context.Context, sessionID int64) (models.Audio, error) {
	body, err := s.blobs.Download(ctx, AudioObjectKey(sessionID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return models.Audio{}, audioNotFoundError(sessionID)
		}
		return models.Audio{}, fmt.Errorf("download audio %d: %w", sessionID, err)
	}
	var audio models.Audio
	if err := json.Unmarshal(body, &audio); err != nil {
		return models.Audio{}, fmt.Errorf("decode audio %d: %w", sessionID, err)
	}
	return audio, nil
}

// List enumerates and decodes every stored record. Each blob is fetched
// individually and nothing is paginated, so this degrades linearly with the
// bucket size; kept for completeness.
func (s *AudioService) List(ctx context.Context) ([]models.Audio, error) {
	keys, err := s.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audio blobs: %w", err)
	}
	audios := make([]models.Audio, 0, len(keys))
	for _, key := range keys {
		body, err := s.blobs.Download(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("download audio blob %s: %w", key, err)
		}
		var audio models.Audio
		if err := json.Unmarshal(body, &audio); err != nil {
			return nil, fmt.Errorf("decode audio blob %s: %w", key, err)
		}
		audios = append(audios, audio)
	}
	return audios, nil
}

// Update overwrites the stored record unconditionally. The caller is
// responsible for having checked that the record exists and that the model's
// session id matches the addressed one; the bucket has no versioning policy
// so the upload replaces any previous contents.
func (s *AudioService) Update(ctx context.Context, audio models.Audio) (models.Audio, error) {
	return s.write(ctx, audio)
}

// Delete removes the record; deleting an absent session id is not an error.
func (s *AudioService) Delete(ctx context.Context, sessionID int64) error {
	return s.blobs.Delete(ctx, AudioObjectKey(sessionID))
}

func (s *AudioService) write(ctx context.Context, audio models.Audio) (models.Audio, error) {
	payload, err := json.Marshal(audio)
	if err != nil {
		return models.Audio{}, fmt.Errorf("encode audio %d: %w", audio.SessionID, err)
	}
	if _, err := s.blobs.Upload(ctx, AudioObjectKey(audio.SessionID), "application/json", payload); err != nil {
		return models.Audio{}, fmt.Errorf("upload audio %d: %w", audio.SessionID, err)
	}
	return audio, nil
}
