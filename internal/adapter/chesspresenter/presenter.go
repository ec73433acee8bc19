package chesspresenter

import (
	"encoding/json"

	"go.uber.org/zap"

	svc "github.com/park285/cheese-engine-player/internal/service/chess"
	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

// Presenter pushes every snapshot to a sink, e.g. the websocket hub,
// without coupling the service to the transport.
type Presenter struct {
	publish func(payload []byte)
	logger  *zap.Logger
}

func NewPresenter(publish func(payload []byte), logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{publish: publish, logger: logger}
}

// Board is shaped to be passed to Service.OnChange.
func (p *Presenter) Board(snap svc.Snapshot) {
	if p == nil || p.publish == nil {
		return
	}
	payload, err := Frame(snap)
	if err != nil {
		p.logger.Warn("snapshot_encode_failed", zap.Error(err))
		return
	}
	p.publish(payload)
}

// Frame encodes snap as a state event.
func Frame(snap svc.Snapshot) ([]byte, error) {
	return json.Marshal(chessdto.Event{Type: chessdto.EventState, State: ToDTOState(snap)})
}
