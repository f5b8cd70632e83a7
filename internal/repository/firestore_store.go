package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestorePrefixEnd はプレフィックス範囲クエリの上限に付与する文字。
const firestorePrefixEnd = "\uf8ff"

// FirestoreStore はFirestoreの1コレクションをKVとして使用するEntityStore。
// キーには "/" が含まれうるため、ドキュメントIDはキーのbase64url表現にし、
// 元のキーは key フィールドに保持して範囲クエリに使う。
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreClient はFirestoreクライアントを生成する。
// credentialsFileが空の場合はApplication Default Credentialsを使用する。
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewFirestoreStore はFirestoreStoreを生成する。
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

type firestoreEntry struct {
	Key   string `firestore:"key"`
	Value string `firestore:"value"`
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(base64.RawURLEncoding.EncodeToString([]byte(key)))
}

// Get は指定キーの値を取得する。見つからない場合はnilを返す。
func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore document: %w", err)
	}
	var e firestoreEntry
	if err := snap.DataTo(&e); err != nil {
		return nil, fmt.Errorf("failed to decode firestore document: %w", err)
	}
	return []byte(e.Value), nil
}

// Set は指定キーに値を書き込む。
func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.doc(key).Set(ctx, firestoreEntry{Key: key, Value: string(value)}); err != nil {
		return fmt.Errorf("failed to set firestore document: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。Firestoreは存在しないドキュメントの削除を成功として扱う。
func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete firestore document: %w", err)
	}
	return nil
}

// ScanPrefix は key フィールドの範囲クエリでprefix配下を取得する。
func (s *FirestoreStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	docs, err := s.client.Collection(s.collection).
		Where("key", ">=", prefix).
		Where("key", "<", prefix+firestorePrefixEnd).
		OrderBy("key", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query firestore prefix: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		var e firestoreEntry
		if err := d.DataTo(&e); err != nil {
			return nil, fmt.Errorf("failed to decode firestore document %s: %w", d.Ref.ID, err)
		}
		entries = append(entries, Entry{Key: e.Key, Value: []byte(e.Value)})
	}
	return entries, nil
}

// CompareAndSwap はトランザクション内で現在値を比較してから書き込む。
func (s *FirestoreStore) CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error) {
	ref := s.doc(key)
	errMismatch := errors.New("value mismatch")

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errMismatch
		}
		if err != nil {
			return err
		}
		var cur firestoreEntry
		if err := snap.DataTo(&cur); err != nil {
			return err
		}
		if cur.Value != string(old) {
			return errMismatch
		}
		return tx.Set(ref, firestoreEntry{Key: key, Value: string(new)})
	})

	if errors.Is(err, errMismatch) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare and swap in firestore: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ EntityStore = (*FirestoreStore)(nil)
