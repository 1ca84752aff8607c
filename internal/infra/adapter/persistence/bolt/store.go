// Package bolt provides a single-file embedding store on bbolt for single-node deployments.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"semantic-linker/internal/domain/entity"
	"semantic-linker/internal/repository"
)

var (
	bucketEmbeddings = []byte("embeddings")
	bucketFailures   = []byte("embedding_failures")
)

// Store holds article embeddings and embedding failures in one bbolt file.
// Keys are article ids, so cursor order is article id order.
type Store struct {
	db *bbolt.DB
}

var (
	_ repository.EmbeddingRepository        = (*EmbeddingRepo)(nil)
	_ repository.EmbeddingFailureRepository = (*FailureRepo)(nil)
)

// EmbeddingRepo is the EmbeddingRepository view of a Store.
type EmbeddingRepo struct {
	db *bbolt.DB
}

// FailureRepo is the EmbeddingFailureRepository view of a Store.
type FailureRepo struct {
	db *bbolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEmbeddings); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketFailures)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Embeddings returns the embedding repository backed by this store.
func (s *Store) Embeddings() *EmbeddingRepo {
	return &EmbeddingRepo{db: s.db}
}

// Failures returns the embedding failure repository backed by this store.
func (s *Store) Failures() *FailureRepo {
	return &FailureRepo{db: s.db}
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *EmbeddingRepo) Upsert(_ context.Context, emb *entity.ArticleEmbedding) error {
	if emb == nil {
		return fmt.Errorf("Upsert: embedding is nil")
	}
	if err := emb.Validate(); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	data, err := json.Marshal(emb)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(emb.ArticleID), data)
	})
}

func (s *EmbeddingRepo) Get(_ context.Context, articleID string) (*entity.ArticleEmbedding, error) {
	var emb entity.ArticleEmbedding
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(articleID))
		if data == nil {
			return entity.ErrNotFound
		}
		return json.Unmarshal(data, &emb)
	})
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *EmbeddingRepo) ListByWorkspace(_ context.Context, workspaceID, modelVersion string) ([]*entity.ArticleEmbedding, error) {
	out := make([]*entity.ArticleEmbedding, 0)
	err := s.eachEmbedding(func(emb *entity.ArticleEmbedding) {
		if emb.WorkspaceID == workspaceID && emb.ModelVersion == modelVersion {
			out = append(out, emb)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	return out, nil
}

func (s *EmbeddingRepo) ListArticleIDs(_ context.Context, workspaceID string) ([]string, error) {
	ids := make([]string, 0)
	err := s.eachEmbedding(func(emb *entity.ArticleEmbedding) {
		if emb.WorkspaceID == workspaceID {
			ids = append(ids, emb.ArticleID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ListArticleIDs: %w", err)
	}
	return ids, nil
}

func (s *EmbeddingRepo) eachEmbedding(fn func(*entity.ArticleEmbedding)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).ForEach(func(_, v []byte) error {
			var emb entity.ArticleEmbedding
			if err := json.Unmarshal(v, &emb); err != nil {
				return err
			}
			fn(&emb)
			return nil
		})
	})
}

func (s *EmbeddingRepo) Delete(_ context.Context, articleID string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEmbeddings)
		if b.Get([]byte(articleID)) == nil {
			return nil
		}
		n = 1
		return b.Delete([]byte(articleID))
	})
	if err != nil {
		return 0, fmt.Errorf("Delete: %w", err)
	}
	return n, nil
}

func (s *FailureRepo) Record(_ context.Context, f *entity.EmbeddingFailure) error {
	if f == nil || f.ArticleID == "" {
		return fmt.Errorf("Record: %w", &entity.ValidationError{Field: "ArticleID", Message: "article id is required"})
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFailures).Put([]byte(f.ArticleID), data)
	})
}

func (s *FailureRepo) ListByWorkspace(_ context.Context, workspaceID string) (map[string]*entity.EmbeddingFailure, error) {
	out := make(map[string]*entity.EmbeddingFailure)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFailures).ForEach(func(k, v []byte) error {
			var f entity.EmbeddingFailure
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if f.WorkspaceID == workspaceID {
				out[string(k)] = &f
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ListByWorkspace: %w", err)
	}
	return out, nil
}

func (s *FailureRepo) Clear(_ context.Context, articleID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFailures).Delete([]byte(articleID))
	})
}
