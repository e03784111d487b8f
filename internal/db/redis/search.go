package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/opalgrove/catdex/internal/db"
)

const vectorScoreField = "__vector_score"

// queryEscaper escapes characters with special meaning in FT.SEARCH
// query syntax so user input is matched literally.
var queryEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
	"[", "\\[", "]", "\\]", "\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;",
	"!", "\\!", "@", "\\@", "#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
	"=", "\\=", "~", "\\~", "|", "\\|", "/", "\\/",
)

// SearchKNN runs a K-nearest-neighbour vector query against q.VectorField.
// Scores are returned as similarity in [0, 1], higher is closer.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("index name is required")}
	}
	if len(q.Vector) == 0 {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("vector is required")}
	}
	if q.K <= 0 {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("k must be positive, got %d", q.K)}
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, q.VectorField, vectorScoreField)

	args := []string{q.IndexName, query,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"SORTBY", vectorScoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
	}
	args = appendReturnArgs(args, q.ReturnFields, vectorScoreField)
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	resp, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(resp)
}

// SearchText runs a BM25 full-text query over q.SearchFields.
// Scores are the raw BM25 values reported by the server.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("query is required")}
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	query := buildTextQuery(q.Query, q.SearchFields)

	args := []string{q.IndexName, query,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(topK),
	}
	args = appendReturnArgs(args, q.ReturnFields)
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	resp, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredResult(resp)
}

// SearchCount returns the number of documents matching query without
// fetching any of them.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(index, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	resp, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(resp) == 0 {
		return 0, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("empty response")}
	}
	total, err := resp[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse total: %w", err)}
	}
	return int(total), nil
}

// buildTextQuery produces "@f1|f2:(escaped terms)" limited to the given
// fields, or a bare escaped query when no fields are set.
func buildTextQuery(raw string, fields []string) string {
	escaped := queryEscaper.Replace(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return escaped
	}
	return "@" + strings.Join(fields, "|") + ":(" + escaped + ")"
}

func appendReturnArgs(args []string, fields []string, extra ...string) []string {
	all := make([]string, 0, len(fields)+len(extra))
	all = append(all, fields...)
	all = append(all, extra...)
	if len(all) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(all)))
	return append(args, all...)
}

// parseKNNResult decodes a RESP2 FT.SEARCH reply of [total, key, fields,
// key, fields, ...] and converts the cosine distance stored under
// __vector_score into a similarity score.
func parseKNNResult(resp []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(resp) == 0 {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("empty response")}
	}

	total, err := resp[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse total: %w", err)}
	}

	result := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(resp); i += 2 {
		key, err := resp[i].ToString()
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse key: %w", err)}
		}
		fields, err := parseFieldPairs(resp[i+1])
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse fields for %s: %w", key, err)}
		}

		score := 0.0
		if raw, ok := fields[vectorScoreField]; ok {
			if dist, err := strconv.ParseFloat(raw, 64); err == nil {
				score = math.Max(0, 1.0-dist)
			}
			delete(fields, vectorScoreField)
		}

		result.Entries = append(result.Entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}
	return result, nil
}

// parseScoredResult decodes a WITHSCORES reply of [total, key, score,
// fields, key, score, fields, ...].
func parseScoredResult(resp []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(resp) == 0 {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("empty response")}
	}

	total, err := resp[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse total: %w", err)}
	}

	result := &db.SearchResult{Total: int(total)}
	for i := 1; i+2 < len(resp); i += 3 {
		key, err := resp[i].ToString()
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse key: %w", err)}
		}
		rawScore, err := resp[i+1].ToString()
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse score for %s: %w", key, err)}
		}
		score, err := strconv.ParseFloat(rawScore, 64)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse score for %s: %w", key, err)}
		}
		fields, err := parseFieldPairs(resp[i+2])
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse fields for %s: %w", key, err)}
		}

		result.Entries = append(result.Entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}
	return result, nil
}

func parseFieldPairs(msg rueidis.RedisMessage) (map[string]string, error) {
	arr, err := msg.ToArray()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		name, err := arr[i].ToString()
		if err != nil {
			return nil, err
		}
		value, err := arr[i+1].ToString()
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
	return fields, nil
}

// vectorToBytes encodes float32s as little-endian bytes, the layout
// RediSearch expects for FLOAT32 vector blobs.
func vectorToBytes(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return rueidis.BinaryString(buf)
}

// BytesToVector decodes a FLOAT32 blob back into floats. Used when
// reading stored embeddings out of document hashes.
func BytesToVector(s string) []float32 {
	if len(s)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(s)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return vec
}
