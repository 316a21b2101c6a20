package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/observer"
)

type fakeStream struct {
	events chan observer.Event
}

func (s *fakeStream) Notify(ev observer.Event) bool {
	s.events <- ev
	return true
}

func (s *fakeStream) next(t *testing.T) observer.Event {
	t.Helper()

	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection event")
		return observer.Event{}
	}
}

func newRouterForTesting() (*routerStruct, *fakeStream) {
	stream := &fakeStream{events: make(chan observer.Event, 16)}
	return SetupRouter(chi.NewRouter(), config.Default(), stream, zerolog.Nop()), stream
}

func testRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, err := http.NewRequest(method, ts.URL+path, body)
	is.NoErr(err)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	is.NoErr(err)

	return resp, string(respBody)
}

func dial(is *is.I, ts *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	is.NoErr(err) // websocket dial failed
	return conn
}

func TestThatHealthEndpointReturns204(t *testing.T) {
	is := is.New(t)

	r, _ := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	resp, _ := testRequest(is, ts, "GET", "/health", nil)

	is.Equal(resp.StatusCode, http.StatusNoContent) // health endpoint status code not ok
}

func TestThatIndexPageIsServed(t *testing.T) {
	is := is.New(t)

	r, _ := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	resp, body := testRequest(is, ts, "GET", "/", nil)

	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	is.True(regexp.MustCompile(`channelCount\s*=\s*8\s*;`).MatchString(body)) // page charts every channel
}

func TestThatPlainRequestToStreamIsRejected(t *testing.T) {
	is := is.New(t)

	r, stream := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	resp, _ := testRequest(is, ts, "GET", "/ws", nil)

	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.Equal(len(stream.events), 0) // no observer for a failed upgrade
}

func TestThatStreamDeliversMessages(t *testing.T) {
	is := is.New(t)

	r, stream := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	client := dial(is, ts)
	defer client.Close()

	ev := stream.next(t)
	is.Equal(ev.Kind, observer.EventConnect)
	is.True(ev.Observer != nil)
	is.Equal(ev.Observer.State(), observer.Connecting)

	o := ev.Observer
	is.NoErr(o.Activate())
	is.NoErr(o.Send([]byte(`{"timestamp":0,"channels":[]}`)))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := client.ReadMessage()
	is.NoErr(err)
	is.Equal(kind, websocket.TextMessage)
	is.Equal(string(msg), `{"timestamp":0,"channels":[]}`)

	is.NoErr(client.WriteMessage(websocket.TextMessage, []byte("hello")))
	ev = stream.next(t)
	is.Equal(ev.Kind, observer.EventData)
	is.Equal(ev.ObserverID, o.ID)
	is.Equal(string(ev.Payload), "hello")
}

func TestThatClosingObserverClosesConnection(t *testing.T) {
	is := is.New(t)

	r, stream := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	client := dial(is, ts)
	defer client.Close()

	o := stream.next(t).Observer
	is.NoErr(o.Activate())
	is.NoErr(o.Close("overload"))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	is.True(websocket.IsCloseError(err, websocket.CloseNormalClosure)) // server sends a close frame

	ev := stream.next(t)
	is.Equal(ev.Kind, observer.EventDisconnect)
	is.Equal(ev.ObserverID, o.ID)

	r.Wait()
}

func TestThatClientDisconnectIsReported(t *testing.T) {
	is := is.New(t)

	r, stream := newRouterForTesting()
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	client := dial(is, ts)
	o := stream.next(t).Observer

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
	is.NoErr(client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	client.Close()

	ev := stream.next(t)
	is.Equal(ev.Kind, observer.EventDisconnect)
	is.Equal(ev.ObserverID, o.ID)
}

func TestThatSendNeverBlocks(t *testing.T) {
	is := is.New(t)

	c := newWSConn(nil, 1, time.Second)

	is.NoErr(c.Send([]byte("a")))
	is.Equal(c.Send([]byte("b")), observer.ErrQueueFull) // queue holds one message

	is.NoErr(c.Close())
	is.NoErr(c.Close())
	is.Equal(c.Send([]byte("c")), ErrClosed)
}
