package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Oturum bilgilerinin saklandığı anahtarlar.
const (
	TokenKey = "jwtToken"
	UserKey  = "userData"
)

// LegacyKeys, eski sürümlerden kalan ve çıkışta temizlenen anahtarlardır.
var LegacyKeys = []string{"user", "refreshToken"}

// Store, süreç genelinde tek olan anahtar-değer deposunu tanımlar.
// Yazma işlemleri yalnızca oturum deposundan yapılır.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// StoredToken, depodaki bearer token'ı istek yetkilendirmesi için okur.
type StoredToken struct {
	Store Store
}

// Token, kayıtlı token'ı döndürür; yoksa boş string döner.
func (t StoredToken) Token(ctx context.Context) (string, error) {
	v, _, err := t.Store.Get(ctx, TokenKey)
	return v, err
}

// JSONDatabase, anahtar-değer çiftlerini bir JSON dosyasında tutar.
type JSONDatabase struct {
	mu       sync.RWMutex
	data     map[string]string
	filePath string
}

// NewJSONDatabase, yeni bir JSONDatabase örneği oluşturur ve verileri yükler.
// Bozuk bir dosya oturum yok olarak kabul edilir ve sıfırlanır.
func NewJSONDatabase(filePath string) (*JSONDatabase, error) {
	db := &JSONDatabase{
		filePath: filePath,
		data:     map[string]string{},
	}
	if err := db.loadData(); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
			return nil, err
		}
		slog.Warn("JSONDatabase - corrupt storage file, resetting", slog.String("path", filePath), slog.Any("err", err))
		db.data = map[string]string{}
		if saveErr := db.saveData(); saveErr != nil {
			return nil, saveErr
		}
	}
	return db, nil
}

func (db *JSONDatabase) loadData() error {
	if _, err := os.Stat(db.filePath); os.IsNotExist(err) {
		return db.saveData()
	}

	fileData, err := os.ReadFile(db.filePath)
	if err != nil {
		return err
	}
	// Dosya boşsa hata vermemesi için kontrol
	if len(fileData) == 0 {
		return nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(fileData, &data); err != nil {
		return err
	}
	db.data = data
	return nil
}

func (db *JSONDatabase) saveData() error {
	if dir := filepath.Dir(db.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.filePath, data, 0o600)
}

// Get, anahtara karşılık gelen değeri döndürür.
func (db *JSONDatabase) Get(_ context.Context, key string) (string, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[key]
	return v, ok, nil
}

// Set, anahtara bir değer yazar ve dosyayı günceller.
func (db *JSONDatabase) Set(_ context.Context, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[key] = value
	return db.saveData()
}

// Delete, verilen anahtarları siler. Olmayan anahtarlar hata değildir.
func (db *JSONDatabase) Delete(_ context.Context, keys ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := db.data[k]; ok {
			delete(db.data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return db.saveData()
}

// Close, dosya tabanlı depoda bir şey yapmaz.
func (db *JSONDatabase) Close() error {
	return nil
}

// MemoryStore, süreç belleğinde tutulan bir Store'dur.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
