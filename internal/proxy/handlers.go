package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/shield"
)

// newReverseProxy builds the proxy for one upstream provider
func (s *Server) newReverseProxy(provider, upstream string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid %s upstream URL %q", provider, upstream)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Let the transport negotiate compression so responses arrive decoded
			pr.Out.Header.Del("Accept-Encoding")
			if pr.Out.Header.Get("User-Agent") == "" {
				pr.Out.Header.Set("User-Agent", "Aegis-Shield/"+Version)
			}
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: s.config.Upstream.Timeout,
			IdleConnTimeout:       90 * time.Second,
		},
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			return s.restoreResponse(resp)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.requestLogger(r).Error("Proxy error", zap.String("provider", provider), zap.Error(err))
			writeError(w, http.StatusBadGateway, "upstream_error", "upstream request failed")
		},
	}, nil
}

// providerHandler scrubs the request body and forwards it upstream with the
// provider prefix stripped
func (s *Server) providerHandler(provider string) http.Handler {
	prefix := "/" + provider
	rp := s.proxies[provider]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.requestLogger(r).WithComponent("proxy:" + provider)

		r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		r.URL.RawPath = ""
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}

		if s.config.Privacy.Enabled && r.Body != nil && r.Body != http.NoBody {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.bodyLimit()))
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
					return
				}
				log.Error("Failed to read request body", zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
				return
			}

			body, mapping, err := s.scrubBody(r, provider, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Set("Content-Length", strconv.Itoa(len(body)))

			if len(mapping) > 0 {
				r = r.WithContext(context.WithValue(r.Context(), mappingKey, mapping))
			}
		}

		start := time.Now()
		rp.ServeHTTP(w, r)
		log.Debug("Request proxied", zap.Duration("upstream_duration", time.Since(start)))
	})
}

// scrubBody redacts PII from a request body. The mapping lives only for
// this request.
func (s *Server) scrubBody(r *http.Request, provider string, body []byte) ([]byte, privacy.Mapping, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return body, nil, nil
	}

	req := shield.ScrubRequest{
		Text:      string(body),
		Ephemeral: true,
		Origin:    "proxy:" + provider,
	}

	var res *shield.ScrubResult
	var err error
	if isJSON(r.Header.Get("Content-Type")) {
		res, err = s.shield.ScrubJSON(r.Context(), req)
	} else {
		res, err = s.shield.Scrub(r.Context(), req)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(res.Matches) == 0 {
		// Forward the original bytes untouched
		return body, nil, nil
	}
	return []byte(res.Scrubbed), res.Mapping, nil
}

// restoreResponse puts the request's original values back into the upstream
// response. Event streams are passed through as they arrive.
func (s *Server) restoreResponse(resp *http.Response) error {
	if !s.config.Privacy.RestoreResponses {
		return nil
	}
	mapping, ok := resp.Request.Context().Value(mappingKey).(privacy.Mapping)
	if !ok || len(mapping) == 0 {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if isEventStream(contentType) || resp.Header.Get("Content-Encoding") != "" {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read upstream response: %w", err)
	}

	if isJSON(contentType) {
		mapping = jsonEscaped(mapping)
	}
	restored, err := privacy.Restore(string(body), mapping)
	if err != nil {
		restored = string(body)
	}

	resp.Body = io.NopCloser(strings.NewReader(restored))
	resp.ContentLength = int64(len(restored))
	resp.Header.Set("Content-Length", strconv.Itoa(len(restored)))
	return nil
}

// jsonEscaped escapes mapping values for insertion inside JSON strings
func jsonEscaped(mapping privacy.Mapping) privacy.Mapping {
	out := make(privacy.Mapping, len(mapping))
	for placeholder, value := range mapping {
		encoded, err := json.Marshal(value)
		if err != nil {
			out[placeholder] = value
			continue
		}
		out[placeholder] = string(encoded[1 : len(encoded)-1])
	}
	return out
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/event-stream"
}
