package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/memgo/blobstore"
)

// DDBCommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// for atomic snapshot commits. This enables safe concurrent writers.
//
// A plain S3 Put is atomic per object but offers no compare-and-swap: two
// processes persisting the same user's memory can silently overwrite each
// other. The commit store closes that gap:
//   - Each Put uploads the snapshot to a versioned S3 key ("<name>.v<N>")
//   - A DynamoDB conditional write then commits version N as current
//   - A losing writer gets ErrConcurrentModification instead of clobbering
//
// Table schema:
//   - Partition key: blob (string) - the blob name
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name memgo-commits \
//	  --attribute-definitions AttributeName=blob,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=blob,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	objects   blobstore.BlobStore
	ddbClient DDBClient
	tableName string
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when a concurrent write is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// NewDDBCommitStore creates a new S3+DynamoDB commit store. objects is the
// underlying object store, typically an S3 Store.
func NewDDBCommitStore(objects blobstore.BlobStore, ddbClient DDBClient, tableName string) *DDBCommitStore {
	return &DDBCommitStore{
		objects:   objects,
		ddbClient: ddbClient,
		tableName: tableName,
	}
}

func versionedName(name string, version uint64) string {
	return fmt.Sprintf("%s.v%d", name, version)
}

// Put uploads the snapshot under a versioned key and atomically commits it
// as the current version via a DynamoDB conditional write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	current, _, err := s.latestVersion(ctx, name)
	if err != nil {
		return err
	}
	next := current + 1

	objectKey := versionedName(name, next)
	if err := s.objects.Put(ctx, objectKey, data); err != nil {
		return err
	}

	// Conditional put: only succeed if this version doesn't exist yet.
	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"blob":       &types.AttributeValueMemberS{Value: name},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"object_key": &types.AttributeValueMemberS{Value: objectKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			// Lost the race: another writer committed this version first.
			// Clean up our orphaned upload (best-effort).
			_ = s.objects.Delete(ctx, objectKey)
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version to dynamodb: %w", err)
	}

	return nil
}

// Get resolves the current committed version from DynamoDB and downloads it.
func (s *DDBCommitStore) Get(ctx context.Context, name string) ([]byte, error) {
	version, objectKey, err := s.latestVersion(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return s.objects.Get(ctx, objectKey)
}

// Delete removes all committed versions of a blob.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("blob = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return fmt.Errorf("query dynamodb: %w", err)
	}

	for _, item := range resp.Items {
		versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
		if !ok {
			continue
		}
		if keyAttr, ok := item["object_key"].(*types.AttributeValueMemberS); ok {
			if err := s.objects.Delete(ctx, keyAttr.Value); err != nil {
				return err
			}
		}
		_, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"blob":    &types.AttributeValueMemberS{Value: name},
				"version": versionAttr,
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// List lists blobs with prefix. Versioned object keys are collapsed to
// their logical blob name, keeping the highest version's size.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]blobstore.Info, error) {
	raw, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	type versioned struct {
		version uint64
		size    int64
	}
	latest := make(map[string]versioned)

	for _, info := range raw {
		name, version, ok := splitVersion(info.Name)
		if !ok {
			continue
		}
		if cur, seen := latest[name]; !seen || version > cur.version {
			latest[name] = versioned{version: version, size: info.Size}
		}
	}

	infos := make([]blobstore.Info, 0, len(latest))
	for name, v := range latest {
		infos = append(infos, blobstore.Info{Name: name, Size: v.size})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos, nil
}

// latestVersion queries DynamoDB for the latest committed version of a blob.
func (s *DDBCommitStore) latestVersion(ctx context.Context, name string) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("blob = :b"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: name},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query dynamodb: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in dynamodb item")
	}
	keyAttr, ok := item["object_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid object_key attribute in dynamodb item")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}

	return version, keyAttr.Value, nil
}

func splitVersion(key string) (string, uint64, bool) {
	i := strings.LastIndex(key, ".v")
	if i < 0 {
		return "", 0, false
	}
	version, err := strconv.ParseUint(key[i+2:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return key[:i], version, true
}
