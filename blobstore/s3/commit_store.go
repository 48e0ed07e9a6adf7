package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/objalloc/blobstore"
)

// CurrentName is the base name of pointer blobs. Writes to any blob with this
// base name are committed through DynamoDB instead of S3.
const CurrentName = "CURRENT"

// ErrConcurrentModification is returned when another writer committed the
// same pointer version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// CommitStore implements blobstore.Store on top of another store, typically
// a Store, and keeps CURRENT pointers in DynamoDB.
//
// S3 has no compare-and-swap, so two writers racing on a snapshot's CURRENT
// could silently overwrite each other. Every pointer write here is a new
// version item guarded by a conditional put; the loser of a race gets
// ErrConcurrentModification.
//
// Table schema:
//   - Partition key: pointer (string) - "<baseURI>#<blob name>"
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name objalloc-commits \
//	  --attribute-definitions AttributeName=pointer,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=pointer,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	inner     blobstore.Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

var _ blobstore.Store = (*CommitStore)(nil)

// NewCommitStore creates a commit store. baseURI (e.g. "s3://bucket/prefix")
// namespaces the pointers of this store inside the table.
func NewCommitStore(inner blobstore.Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		inner:     inner,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

func isPointer(name string) bool {
	return path.Base(name) == CurrentName
}

func (s *CommitStore) pointerKey(name string) string {
	return s.baseURI + "#" + name
}

// Open opens a blob for reading. CURRENT pointers resolve to their latest
// committed version.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if !isPointer(name) {
		return s.inner.Open(ctx, name)
	}
	version, target, err := s.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.NewBytesBlob([]byte(target)), nil
}

// Put writes a blob. CURRENT pointers are committed with a conditional
// write.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if isPointer(name) {
		return s.commit(ctx, name, string(data))
	}
	return s.inner.Put(ctx, name, data)
}

// Delete deletes a blob. Deleting a CURRENT pointer removes its whole
// version history.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	if !isPointer(name) {
		return s.inner.Delete(ctx, name)
	}

	key := s.pointerKey(name)
	var start map[string]types.AttributeValue
	for {
		resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("pointer = :p"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":p": &types.AttributeValueMemberS{Value: key},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return fmt.Errorf("s3: query commits: %w", err)
		}
		for _, item := range resp.Items {
			if _, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"pointer": item["pointer"],
					"version": item["version"],
				},
			}); err != nil {
				return fmt.Errorf("s3: delete commit: %w", err)
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return nil
		}
		start = resp.LastEvaluatedKey
	}
}

// List lists blobs of the inner store. Pointers are not listed.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// latest returns the newest committed version of a pointer, or 0.
func (s *CommitStore) latest(ctx context.Context, name string) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pointer = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: s.pointerKey(name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid target attribute")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse version: %w", err)
	}
	return version, targetAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, name, target string) error {
	current, _, err := s.latest(ctx, name)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pointer": &types.AttributeValueMemberS{Value: s.pointerKey(name)},
			"version": &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"target":  &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit pointer: %w", err)
	}
	return nil
}
