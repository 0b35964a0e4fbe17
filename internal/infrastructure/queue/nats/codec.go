package nats

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/anvesana/internal/core/domain"
)

var errEmptyRunID = errors.New("run id is empty")

func encodeRequest(req domain.IngestRequest) ([]byte, error) {
	if req.RunID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode ingest request", errEmptyRunID)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest request: %w", err)
	}
	return payload, nil
}

func decodeRequest(data []byte) (domain.IngestRequest, error) {
	var req domain.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.IngestRequest{}, fmt.Errorf("unmarshal ingest request: %w", err)
	}
	if req.RunID == "" {
		return domain.IngestRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode ingest request", errEmptyRunID)
	}
	return req, nil
}
