// Package lockdao reads and removes items from the Terraform S3 backend's
// DynamoDB lock table. The tool never creates lock items; terraform does,
// during its own apply/destroy. This DAO exists to inspect a stale
// reservation and, with operator confirmation, clear it directly - bypassing
// `terraform force-unlock`, which needs an initialized working directory.
package lockdao

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

// ID is the lock table item key. Terraform's S3 backend keys the state
// digest record as "{bucket}/{key}-md5".
type ID string

// NewID builds the digest-record ID for a state object.
func NewID(bucket, stateKey string) ID {
	return ID(fmt.Sprintf("%s/%s-md5", bucket, stateKey))
}

// String returns the string representation.
func (id ID) String() string {
	return string(id)
}

// Record mirrors the item shape terraform writes to the lock table.
type Record struct {
	LockID string `ddb:"hash" dynamodbav:"LockID"`
	Info   string `dynamodbav:"Info,omitempty"`
	Digest string `dynamodbav:"Digest,omitempty"`
}

// DAO provides read/delete access to the lock table.
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance.
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Find retrieves a lock record by ID. Returns nil if not found.
func (d *DAO) Find(ctx context.Context, id ID) (*Record, error) {
	var record Record
	err := d.table.Get(id.String()).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lock %s: %w", id, err)
	}

	if record.LockID == "" {
		return nil, nil
	}
	return &record, nil
}

// Delete removes a lock record regardless of holder. Callers are expected
// to have confirmed with the operator that no terraform run is active.
func (d *DAO) Delete(ctx context.Context, id ID) error {
	err := d.table.Delete(id.String()).RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete lock %s: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "item not found") || strings.Contains(msg, "ItemNotFound")
}
