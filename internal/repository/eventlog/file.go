package eventlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// recordsKey is the top-level attribute holding the records of the file document.
const recordsKey = "records"

// errMalformedFile is returned when the file document has an unexpected shape.
var errMalformedFile = errors.New("malformed event log file")

// FileRepository persists records to a JSON file on disk.
// The document is {"records": {"<device>#<timestamp>": {...}}}, produced and
// consumed with protojson through structpb.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes read-modify-write cycles on the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Append writes the record, replacing any record with the same key.
func (r *FileRepository) Append(_ context.Context, record *gas.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	records[record.Key()] = record.Fields()

	return r.save(records)
}

// Get reads the record at (deviceID, timestamp).
func (r *FileRepository) Get(_ context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	fields, ok := records[gas.RecordKey(deviceID, timestamp)].(map[string]any)
	if !ok {
		return nil, notFound(deviceID, timestamp)
	}

	record, err := gas.RecordFromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("decode event record: %w", err)
	}

	return record, nil
}

// load reads every record from disk. A missing file holds no records.
func (r *FileRepository) load() (map[string]any, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}

		return nil, fmt.Errorf("read event log file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode event log file: %w", err)
	}

	value, ok := document.GetFields()[recordsKey]
	if !ok {
		return map[string]any{}, nil
	}

	records, ok := value.AsInterface().(map[string]any)
	if !ok {
		return nil, errMalformedFile
	}

	return records, nil
}

// save writes every record to disk.
func (r *FileRepository) save(records map[string]any) error {
	document, err := structpb.NewStruct(map[string]any{recordsKey: records})
	if err != nil {
		return fmt.Errorf("encode event log: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode event log: %w", err)
	}

	return replaceFile(r.path, data)
}

// replaceFile writes data to a temporary file next to path and renames it over path,
// so readers never observe a partially written document.
func replaceFile(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary event log file: %w", err)
	}

	tempPath := temp.Name()

	if _, err = temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("write event log file: %w", err)
	}

	if err = temp.Chmod(config.DefaultFilePermissions); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("chmod event log file: %w", err)
	}

	if err = temp.Close(); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("close event log file: %w", err)
	}

	if err = os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("replace event log file: %w", err)
	}

	return nil
}
