package cache

import (
	"encoding/json"
	"fmt"
	"hotel-search-go/logcolors"
	"hotel-search-go/models"
	"hotel-search-go/utils"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const detailBucket = "hotel_details"

// DefaultDetailTTL is how long a hotel's metadata is reused before refetching.
const DefaultDetailTTL = time.Hour

// DetailCache keeps hotel metadata in BoltDB with an in-memory copy for fast reads.
// Entries older than the TTL are treated as missing and dropped on access.
type DetailCache struct {
	dbMu               sync.RWMutex
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	backupPath         string
	compressionEnabled bool
	ttl                time.Duration
	clock              clockwork.Clock
}

// DetailEntry is the stored form of one hotel's metadata.
// Compressed records how Value was written, so entries stay readable when
// FF_CACHE_COMPRESSION changes between restarts.
type DetailEntry struct {
	Value      string `json:"value"`
	StoredAt   int64  `json:"storedAt"`
	Compressed bool   `json:"compressed,omitempty"`
}

// NewDetailCache opens (or creates) the BoltDB file at dbPath and preloads it into memory.
// A nil clock uses wall time.
func NewDetailCache(dbPath, backupPath string, ttl time.Duration, compressionEnabled bool, clock clockwork.Clock) (*DetailCache, error) {
	if ttl <= 0 {
		ttl = DefaultDetailTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := openDetailDB(dbPath)
	if err != nil {
		return nil, err
	}

	dc := &DetailCache{
		db:                 db,
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
		ttl:                ttl,
		clock:              clock,
	}

	if err := dc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload details to memory: %v", logcolors.LogCacheDetails, err)
	}

	log.Infof("%s Detail cache initialized at %s (ttl: %s, compression: %v)", logcolors.LogCacheDetails, dbPath, ttl, compressionEnabled)
	return dc, nil
}

func openDetailDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(detailBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create detail bucket: %w", err)
	}
	return db, nil
}

// DetailKey namespaces a hotel id by language.
func DetailKey(hotelID, language string) string {
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf("detail:%s:%s", language, hotelID)
}

func (dc *DetailCache) loadToMemory() error {
	count := 0
	err := dc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(detailBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry DetailEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping unreadable entry %s: %v", logcolors.LogCacheDetails, string(k), err)
				return nil
			}
			dc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}
	log.Infof("%s Loaded %d entries from disk to memory", logcolors.LogCacheDetails, count)
	return nil
}

func (dc *DetailCache) expired(entry DetailEntry) bool {
	return dc.clock.Since(time.Unix(entry.StoredAt, 0)) > dc.ttl
}

func (dc *DetailCache) decode(entry DetailEntry) (models.HotelDetail, error) {
	var detail models.HotelDetail
	raw := []byte(entry.Value)
	if entry.Compressed {
		decompressed, err := utils.Decompress(entry.Value)
		if err != nil {
			return detail, err
		}
		raw = decompressed
	}
	err := json.Unmarshal(raw, &detail)
	return detail, err
}

// Get returns the cached detail for key if present and fresh.
func (dc *DetailCache) Get(key string) (models.HotelDetail, bool) {
	v, ok := dc.memCache.Load(key)
	if !ok {
		entry, found := dc.readDisk(key)
		if !found {
			return models.HotelDetail{}, false
		}
		dc.memCache.Store(key, entry)
		v = entry
	}

	entry := v.(DetailEntry)
	if dc.expired(entry) {
		if err := dc.Delete(key); err != nil {
			log.Debugf("%s Failed to drop expired entry %s: %v", logcolors.LogCacheDetails, key, err)
		}
		return models.HotelDetail{}, false
	}

	detail, err := dc.decode(entry)
	if err != nil {
		log.Errorf("%s Error decoding cached value for key %s: %v", logcolors.LogCacheDetails, key, err)
		return models.HotelDetail{}, false
	}
	return detail, true
}

func (dc *DetailCache) readDisk(key string) (DetailEntry, bool) {
	dc.dbMu.RLock()
	defer dc.dbMu.RUnlock()

	var entry DetailEntry
	found := false
	dc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(detailBucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	return entry, found
}

// Set stores detail under key in memory and on disk.
func (dc *DetailCache) Set(key string, detail models.HotelDetail) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	entry := DetailEntry{Value: string(raw), StoredAt: dc.clock.Now().Unix()}
	if dc.compressionEnabled {
		entry.Value, err = utils.Compress(raw)
		if err != nil {
			return fmt.Errorf("failed to compress detail for %s: %w", key, err)
		}
		entry.Compressed = true
	}
	dc.memCache.Store(key, entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	dc.dbMu.RLock()
	defer dc.dbMu.RUnlock()
	return dc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(detailBucket))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes key from memory and disk.
func (dc *DetailCache) Delete(key string) error {
	dc.memCache.Delete(key)

	dc.dbMu.RLock()
	defer dc.dbMu.RUnlock()
	return dc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(detailBucket))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// PurgeExpired drops every entry past the TTL and returns how many were removed.
func (dc *DetailCache) PurgeExpired() int {
	var stale []string
	dc.memCache.Range(func(k, v interface{}) bool {
		if dc.expired(v.(DetailEntry)) {
			stale = append(stale, k.(string))
		}
		return true
	})
	for _, key := range stale {
		if err := dc.Delete(key); err != nil {
			log.Warnf("%s Failed to purge %s: %v", logcolors.LogCacheDetails, key, err)
		}
	}
	return len(stale)
}

// Clear removes all entries.
func (dc *DetailCache) Clear() error {
	dc.memCache.Range(func(key, _ interface{}) bool {
		dc.memCache.Delete(key)
		return true
	})

	dc.dbMu.RLock()
	defer dc.dbMu.RUnlock()
	return dc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(detailBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(detailBucket))
		return err
	})
}

// Range calls fn for each entry in memory until fn returns false.
func (dc *DetailCache) Range(fn func(key string, entry DetailEntry) bool) {
	dc.memCache.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(DetailEntry))
	})
}

// Stats returns the number of keys and the approximate stored size in KB.
func (dc *DetailCache) Stats() (numKeys int, sizeInKB int) {
	dc.memCache.Range(func(k, v interface{}) bool {
		numKeys++
		sizeInKB += len(k.(string)) + len(v.(DetailEntry).Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Backup copies the database file into the backup directory and returns the copy's path.
func (dc *DetailCache) Backup() (string, error) {
	backupFileName := fmt.Sprintf("details_backup_%s.db", dc.clock.Now().Format("2006-01-02_15-04-05"))
	backupFilePath := filepath.Join(dc.backupPath, backupFileName)

	log.Infof("%s Creating backup at: %s", logcolors.LogCacheBackup, backupFilePath)

	dc.dbMu.RLock()
	err := dc.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(backupFilePath, 0600)
	})
	dc.dbMu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("failed to copy database file: %w", err)
	}

	log.Infof("%s Backup created successfully: %s", logcolors.LogCacheBackup, backupFilePath)
	return backupFilePath, nil
}

// BackupAndClear creates a backup and then clears the cache.
func (dc *DetailCache) BackupAndClear() (string, error) {
	backupPath, err := dc.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := dc.Clear(); err != nil {
		return backupPath, fmt.Errorf("backup created but failed to clear cache: %w", err)
	}
	log.Infof("%s Cache cleared successfully (backup: %s)", logcolors.LogCacheClear, backupPath)
	return backupPath, nil
}

// BackupInfo contains metadata about a backup file
type BackupInfo struct {
	FileName  string    `json:"fileName"`
	Size      int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListBackups returns the .db files in the backup directory.
func (dc *DetailCache) ListBackups() ([]BackupInfo, error) {
	var backups []BackupInfo

	entries, err := os.ReadDir(dc.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warnf("%s Failed to get info for %s: %v", logcolors.LogCacheBackups, entry.Name(), err)
			continue
		}
		backups = append(backups, BackupInfo{
			FileName:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	return backups, nil
}

// RestoreFromBackup swaps the live database for the named backup and reloads memory.
func (dc *DetailCache) RestoreFromBackup(backupFileName string) error {
	if filepath.Base(backupFileName) != backupFileName || filepath.Ext(backupFileName) != ".db" {
		return fmt.Errorf("invalid backup file: %s", backupFileName)
	}
	backupFilePath := filepath.Join(dc.backupPath, backupFileName)
	if _, err := os.Stat(backupFilePath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupFileName)
	}

	log.Infof("%s Starting restore from backup: %s", logcolors.LogCacheRestore, backupFileName)

	dc.dbMu.Lock()
	defer dc.dbMu.Unlock()

	if err := dc.db.Close(); err != nil {
		return fmt.Errorf("failed to close current database: %w", err)
	}

	restoreErr := copyFile(backupFilePath, dc.dbPath)

	db, err := openDetailDB(dc.dbPath)
	if err != nil {
		return fmt.Errorf("failed to reopen database after restore: %w", err)
	}
	dc.db = db
	if restoreErr != nil {
		return fmt.Errorf("failed to restore backup: %w", restoreErr)
	}

	dc.memCache.Range(func(key, _ interface{}) bool {
		dc.memCache.Delete(key)
		return true
	})
	if err := dc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to reload details after restore: %v", logcolors.LogCacheRestore, err)
	}

	log.Infof("%s Successfully restored from backup: %s", logcolors.LogCacheRestore, backupFileName)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Close closes the database connection
func (dc *DetailCache) Close() error {
	dc.dbMu.Lock()
	defer dc.dbMu.Unlock()
	if dc.db != nil {
		return dc.db.Close()
	}
	return nil
}
