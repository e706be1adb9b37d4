package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	HTTPSinkName       = "http"
	defaultHTTPTimeout = 5 * time.Second
)

type HTTP struct {
	Endpoint string
	Timeout  time.Duration
	// Client is optional, a client with Timeout is used when nil.
	Client *http.Client
}

func (h HTTP) Name() string {
	return HTTPSinkName
}

// Deliver POSTs the batch as a JSON array of records. Any non-2xx status is a failure.
func (h *HTTP) Deliver(ctx context.Context, batch *sensor.Batch) error {
	body, err := payload(batch)
	if err != nil {
		return err
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s", sensor.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", contentType)

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: error POSTing batch: %s", sensor.ErrDelivery, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s answered %s", sensor.ErrDelivery, h.Endpoint, resp.Status)
	}
	glog.V(1).Infof("submitted %d records to %s", len(batch.Observations), h.Endpoint)
	return nil
}
