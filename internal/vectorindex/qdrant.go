package vectorindex

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/unichat-ai/unichat/internal/model"
)

// QdrantIndex keeps all points in one collection; namespace and the
// soft-delete flag live in the payload so a single query can span
// namespaces.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

func NewQdrantIndex(addr string, collection string) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if missing.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []*model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, record := range records {
		payload := map[string]*pb.Value{
			payloadChunkID:   {Kind: &pb.Value_StringValue{StringValue: record.ChunkID}},
			payloadNamespace: {Kind: &pb.Value_StringValue{StringValue: record.Namespace}},
			payloadActive:    {Kind: &pb.Value_BoolValue{BoolValue: record.Active}},
		}
		for key, value := range record.Payload {
			payload[key] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: value}}
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: toPointUUID(record.PointID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: record.Embedding},
				},
			},
			Payload: payload,
		}
	}
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Hit, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	must := []*pb.Condition{boolMatch(payloadActive, true)}
	if opts.Namespace != "" {
		must = append(must, fieldMatch(payloadNamespace, opts.Namespace))
	}
	for key, value := range opts.Filters {
		must = append(must, fieldMatch(key, value))
	}
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         &pb.Filter{Must: must},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if opts.ScoreThreshold > 0 {
		threshold := opts.ScoreThreshold
		req.ScoreThreshold = &threshold
	}
	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		hit := Hit{
			Score:   r.GetScore(),
			Payload: make(map[string]string),
		}
		for key, value := range r.GetPayload() {
			switch key {
			case payloadChunkID:
				hit.ChunkID = value.GetStringValue()
			case payloadActive:
			default:
				hit.Payload[key] = value.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (q *QdrantIndex) SoftDelete(ctx context.Context, pointIDs []string) error {
	return q.setActive(ctx, pointIDs, false)
}

func (q *QdrantIndex) Restore(ctx context.Context, pointIDs []string) error {
	return q.setActive(ctx, pointIDs, true)
}

// setActive flips the payload flag in place; the vector itself is
// untouched, so restore needs no re-embedding.
func (q *QdrantIndex) setActive(ctx context.Context, pointIDs []string, active bool) error {
	if len(pointIDs) == 0 {
		return nil
	}
	wait := true
	_, err := q.points.SetPayload(ctx, &pb.SetPayloadPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Payload: map[string]*pb.Value{
			payloadActive: {Kind: &pb.Value_BoolValue{BoolValue: active}},
		},
		PointsSelector: idSelector(pointIDs),
	})
	if err != nil {
		return fmt.Errorf("set active=%v on %d points: %w", active, len(pointIDs), err)
	}
	return nil
}

func (q *QdrantIndex) Delete(ctx context.Context, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         idSelector(pointIDs),
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(pointIDs), err)
	}
	return nil
}

func (q *QdrantIndex) Stats(ctx context.Context, namespace string) (*Stats, error) {
	total, err := q.count(ctx, namespace, nil)
	if err != nil {
		return nil, err
	}
	activeCond := boolMatch(payloadActive, true)
	active, err := q.count(ctx, namespace, activeCond)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, Active: active}, nil
}

func (q *QdrantIndex) count(ctx context.Context, namespace string, extra *pb.Condition) (int64, error) {
	var must []*pb.Condition
	if namespace != "" {
		must = append(must, fieldMatch(payloadNamespace, namespace))
	}
	if extra != nil {
		must = append(must, extra)
	}
	req := &pb.CountPoints{CollectionName: q.collection}
	if len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}
	exact := true
	req.Exact = &exact
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := q.points.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func idSelector(pointIDs []string) *pb.PointsSelector {
	ids := make([]*pb.PointId, 0, len(pointIDs))
	for _, id := range pointIDs {
		ids = append(ids, &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: toPointUUID(id)}})
	}
	return &pb.PointsSelector{
		PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: ids},
		},
	}
}

// toPointUUID renders a 32-char hex id in the dashed form qdrant demands
// for uuid point ids. Anything else passes through untouched.
func toPointUUID(id string) string {
	if len(id) != 32 {
		return id
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:32]
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func boolMatch(key string, value bool) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Boolean{Boolean: value},
				},
			},
		},
	}
}
