package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mapcache/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator рассылает инвалидацию ключей кеша между загрузчиками через NATS.
// Собственные сообщения узла и повторы в окне дедупликации игнорируются.
type NATSInvalidator struct {
	conn    *nats.Conn
	config  *InvalidatorConfig
	subject string
	nodeID  string

	subscription *nats.Subscription
	handler      InvalidationHandler
	subMutex     sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	recentKeys map[string]time.Time
	keysMutex  sync.RWMutex

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию для NATS invalidator.
type InvalidatorConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`

	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`

	DedupeWindow time.Duration `yaml:"dedupe_window"`
}

// InvalidationMessage представляет сообщение об инвалидации кеша.
type InvalidationMessage struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	Reason    string    `json:"reason,omitempty"`
}

func applyInvalidatorDefaults(config *InvalidatorConfig) {
	if config.Subject == "" {
		config.Subject = "mapcache.invalidation"
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = 10
	}
	if config.ReconnectWait == 0 {
		config.ReconnectWait = 2 * time.Second
	}
	if config.DedupeWindow == 0 {
		config.DedupeWindow = 5 * time.Second
	}
}

// NewNATSInvalidator подключается к NATS. Пустой nodeID заменяется случайным UUID.
func NewNATSInvalidator(config *InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	applyInvalidatorDefaults(config)

	opts := []nats.Option{
		nats.Name("mapcache-" + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	invalidator := newInvalidator(conn, config, nodeID)
	invalidator.startDedupeCleanup()

	logging.Info("NATS invalidator initialized: %s (subject: %s, node: %s)", config.URL, config.Subject, invalidator.nodeID)
	return invalidator, nil
}

func newInvalidator(conn *nats.Conn, config *InvalidatorConfig, nodeID string) *NATSInvalidator {
	applyInvalidatorDefaults(config)
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	return &NATSInvalidator{
		conn:       conn,
		config:     config,
		subject:    config.Subject,
		nodeID:     nodeID,
		stopCh:     make(chan struct{}),
		recentKeys: make(map[string]time.Time),
	}
}

// NodeID возвращает идентификатор узла.
func (n *NATSInvalidator) NodeID() string {
	return n.nodeID
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if n.isDuplicate(key) {
		logging.Debug("Skipping duplicate invalidation for key: %s", key)
		return nil
	}

	data, err := n.encode(key, "key_rotation")
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	n.recordKey(key)
	atomic.AddInt64(&n.publishedCount, 1)

	logging.Debug("Published invalidation for key: %s", key)
	return nil
}

// SubscribeInvalidations подписывается на уведомления об инвалидации.
// Подписка снимается при отмене ctx или Close.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMutex.Lock()
	defer n.subMutex.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		n.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()

	logging.Info("Subscribed to cache invalidations on subject: %s", n.subject)
	return nil
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()

	if n.conn != nil {
		n.conn.Close()
	}
	logging.Info("NATS invalidator closed")
	return nil
}

// GetMetrics возвращает метрики invalidator.
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	metrics := map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
		"node_id":         n.nodeID,
	}
	if n.conn != nil {
		metrics["connected"] = n.conn.IsConnected()
	}
	return metrics
}

func (n *NATSInvalidator) encode(key, reason string) ([]byte, error) {
	data, err := json.Marshal(&InvalidationMessage{
		Key:       key,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
		Reason:    reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	return data, nil
}

// handleMessage обрабатывает входящее сообщение об инвалидации.
func (n *NATSInvalidator) handleMessage(data []byte) {
	atomic.AddInt64(&n.receivedCount, 1)

	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	if msg.NodeID == n.nodeID {
		return
	}
	if n.isDuplicate(msg.Key) {
		logging.Debug("Ignoring duplicate invalidation for key: %s", msg.Key)
		return
	}
	n.recordKey(msg.Key)

	if n.handler == nil {
		return
	}
	if err := n.handler(msg.Key); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Invalidation handler failed for key %s: %v", msg.Key, err)
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMutex.Lock()
	defer n.subMutex.Unlock()

	if n.subscription == nil {
		return
	}
	if err := n.subscription.Unsubscribe(); err != nil {
		logging.Error("Failed to unsubscribe from invalidations: %v", err)
	}
	n.subscription = nil
}

func (n *NATSInvalidator) isDuplicate(key string) bool {
	n.keysMutex.RLock()
	defer n.keysMutex.RUnlock()

	lastSeen, exists := n.recentKeys[key]
	return exists && time.Since(lastSeen) < n.config.DedupeWindow
}

func (n *NATSInvalidator) recordKey(key string) {
	n.keysMutex.Lock()
	n.recentKeys[key] = time.Now()
	n.keysMutex.Unlock()
}

// startDedupeCleanup запускает периодическую очистку дедупликации.
func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for key, timestamp := range n.recentKeys {
		if now.Sub(timestamp) > n.config.DedupeWindow {
			delete(n.recentKeys, key)
		}
	}
}
