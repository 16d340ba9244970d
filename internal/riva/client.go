// Package riva calls NVIDIA Riva offline speech recognition over gRPC.
package riva

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// Config controls the connection and recognition hints.
type Config struct {
	Endpoint             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	SpeechPhrases        []SpeechPhrase
	DialTimeout          time.Duration
}

// Client owns one gRPC connection to Riva.
type Client struct {
	conn *grpc.ClientConn
	cfg  Config
}

// NewClient creates a lazily connecting client. Extra dial options are
// appended after the insecure transport credentials.
func NewClient(cfg Config, opts ...grpc.DialOption) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, errors.New("riva endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(cfg.Endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial riva grpc %q: %w", cfg.Endpoint, err)
	}
	return &Client{conn: conn, cfg: cfg}, nil
}

// Ready connects and waits up to the dial timeout for the channel to be usable.
func (c *Client) Ready(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	c.conn.Connect()
	if err := waitForReady(readyCtx, c.conn); err != nil {
		return fmt.Errorf("wait for riva grpc readiness: %w", err)
	}
	return nil
}

// Recognize sends one mono LINEAR_PCM buffer and returns the merged
// transcript segments of the top alternatives.
func (c *Client) Recognize(ctx context.Context, pcm []byte, sampleRate int, languageCode string) ([]string, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = c.cfg.LanguageCode
	}

	req := c.buildRequest(pcm, sampleRate, languageCode)
	resp := dynamicpb.NewMessage(recognizeResponseDesc)
	if err := c.conn.Invoke(ctx, recognizeMethod, req, resp); err != nil {
		return nil, fmt.Errorf("riva recognize: %w", err)
	}
	return collectSegments(resp), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) buildRequest(pcm []byte, sampleRate int, languageCode string) *dynamicpb.Message {
	req := dynamicpb.NewMessage(recognizeRequestDesc)

	cfg := req.Mutable(field(recognizeRequestDesc, "config")).Message()
	cfg.Set(field(recognitionConfigDesc, "encoding"), protoreflect.ValueOfEnum(encodingLinearPCM))
	cfg.Set(field(recognitionConfigDesc, "sample_rate_hertz"), protoreflect.ValueOfInt32(int32(sampleRate)))
	cfg.Set(field(recognitionConfigDesc, "language_code"), protoreflect.ValueOfString(languageCode))
	cfg.Set(field(recognitionConfigDesc, "max_alternatives"), protoreflect.ValueOfInt32(1))
	cfg.Set(field(recognitionConfigDesc, "audio_channel_count"), protoreflect.ValueOfInt32(1))
	cfg.Set(field(recognitionConfigDesc, "enable_automatic_punctuation"), protoreflect.ValueOfBool(c.cfg.AutomaticPunctuation))
	if model := strings.TrimSpace(c.cfg.Model); model != "" {
		cfg.Set(field(recognitionConfigDesc, "model"), protoreflect.ValueOfString(model))
	}

	contexts := cfg.Mutable(field(recognitionConfigDesc, "speech_contexts")).List()
	for _, phrase := range c.cfg.SpeechPhrases {
		text := strings.TrimSpace(phrase.Phrase)
		if text == "" {
			continue
		}
		sc := contexts.NewElement()
		msg := sc.Message()
		msg.Mutable(field(speechContextDesc, "phrases")).List().Append(protoreflect.ValueOfString(text))
		msg.Set(field(speechContextDesc, "boost"), protoreflect.ValueOfFloat32(phrase.Boost))
		contexts.Append(sc)
	}

	req.Set(field(recognizeRequestDesc, "audio"), protoreflect.ValueOfBytes(pcm))
	return req
}
