package realtime

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// frame is the wire shape of one pushed change.
type frame struct {
	ResourceType string `json:"resourceType"`
	Event
}

// WSFeed reads change frames from a websocket and republishes them on
// an internal hub, satisfying Subscriber. Transport authentication is
// owned by the caller via the dial URL.
type WSFeed struct {
	hub  *Hub
	conn *websocket.Conn
	log  *logrus.Entry
}

// DialFeed connects to the change feed and starts reading. The feed
// stops when ctx is cancelled, Close is called or the read fails.
func DialFeed(ctx context.Context, url string, logger *logrus.Logger) (*WSFeed, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial change feed: %w", err)
	}

	feed := &WSFeed{
		hub:  NewHub(),
		conn: conn,
		log:  logger.WithField("component", "realtime"),
	}
	go feed.readLoop(ctx)
	return feed, nil
}

func (f *WSFeed) Subscribe(resourceType string, filter FilterFunc, handler HandlerFunc) (func(), error) {
	return f.hub.Subscribe(resourceType, filter, handler)
}

func (f *WSFeed) Close() error { return f.conn.Close() }

func (f *WSFeed) readLoop(ctx context.Context) {
	go func() {
		<-ctx.Done()
		f.conn.Close()
	}()

	for {
		var fr frame
		if err := f.conn.ReadJSON(&fr); err != nil {
			if ctx.Err() == nil {
				f.log.WithError(err).Warn("change feed closed")
			}
			return
		}
		f.hub.Publish(fr.ResourceType, fr.Event)
	}
}
