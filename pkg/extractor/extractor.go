package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tararauzumaki/autoattend/internal/entity"
)

var (
	// ErrModelNotReady means the embedding service is unreachable or still
	// loading its model. Callers surface it without retrying the same frame.
	ErrModelNotReady = errors.New("embedding service not ready")

	// ErrNoFaceDetected means the image was processed but contained no face.
	ErrNoFaceDetected = errors.New("no face detected in image")
)

// IExtractor turns an image into face embeddings via the external AI service.
// Extract returns the embedding of the most prominent face; DetectAll returns
// every face found, largest first.
type IExtractor interface {
	Extract(image []byte) (entity.Embedding, int, error)
	DetectAll(image []byte) ([]entity.DetectedFace, error)
	IsConnected() bool
	Reconnect() error
	Close()
}

type extractorClient struct {
	conn         *websocket.Conn
	mu           sync.Mutex // guards conn
	reqMu        sync.Mutex // serializes request-response exchanges
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewAIExtractorClient() IExtractor {
	client := &extractorClient{
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go client.connectInBackground()

	return client
}

func (c *extractorClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		log.Printf("Initial connection to embedding service failed: %v. Will retry on demand.", err)
	} else {
		log.Printf("Successfully connected to embedding service")
	}
}

func (c *extractorClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

func (c *extractorClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	url := getEmbeddingServiceURL()

	log.Printf("Connecting to embedding service at %s", url)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn

	go c.keepAlive()

	return nil
}

func (c *extractorClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *extractorClient) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		conn := c.conn

		if conn == nil {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(
			websocket.PingMessage,
			[]byte{},
			time.Now().Add(c.writeTimeout),
		)

		if err != nil {
			log.Printf("Ping failed for embedding service, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

// dropConnection closes a dead connection and forgets it unless a reconnect
// already replaced it.
func (c *extractorClient) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *extractorClient) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected to embedding service")
	}

	return c.conn, nil
}

// Extract sends one image and returns the embedding of the most prominent
// face plus the total number of faces the service saw. An image with no face
// yields ErrNoFaceDetected.
func (c *extractorClient) Extract(image []byte) (entity.Embedding, int, error) {
	result, err := c.processImage(image)
	if err != nil {
		return nil, 0, err
	}

	if len(result.Faces) == 0 {
		return nil, 0, ErrNoFaceDetected
	}

	embedding := result.Faces[0].Embedding
	if !embedding.Valid() {
		return nil, 0, fmt.Errorf("embedding service returned %d dimensions, expected %d",
			len(embedding), entity.EmbeddingDim)
	}

	return embedding, len(result.Faces), nil
}

func (c *extractorClient) DetectAll(image []byte) ([]entity.DetectedFace, error) {
	result, err := c.processImage(image)
	if err != nil {
		return nil, err
	}

	for _, face := range result.Faces {
		if !face.Embedding.Valid() {
			return nil, fmt.Errorf("embedding service returned %d dimensions, expected %d",
				len(face.Embedding), entity.EmbeddingDim)
		}
	}

	return result.Faces, nil
}

// processImage performs one request-response exchange with the embedding
// service. The exchange mutex is held across the write and the read: the
// service answers in request order and the connection allows at most one
// concurrent reader, so each response must be consumed by the caller that
// wrote the matching request.
func (c *extractorClient) processImage(image []byte) (*entity.ExtractionResult, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	conn, err := c.getConnection()
	if err != nil {
		if err := c.Reconnect(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
		}
		conn, err = c.getConnection()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelNotReady, err)
		}
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	if err := conn.WriteMessage(websocket.BinaryMessage, image); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error sending image: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error reading embedding response: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result entity.ExtractionResult
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling embedding response: %w", err)
	}

	if result.Status == "loading" {
		return nil, ErrModelNotReady
	}

	return &result, nil
}

func getEmbeddingServiceURL() string {
	url := os.Getenv("AI_EMBEDDING_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/embedding/ws"
	}
	return url
}
