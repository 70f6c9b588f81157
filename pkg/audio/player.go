package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisecancel/pkg/audio/registry"
)

const BufferSize = 100 * time.Millisecond

type Player struct {
	PlayerPCM

	// Backend is the name of the registered backend, empty for a
	// player created by NewPlayer.
	Backend string
}

func NewPlayer(playerPCM PlayerPCM) *Player {
	return &Player{
		PlayerPCM: playerPCM,
	}
}

var lastPlayer lastBackend

func playerCandidate(entry registry.Entry[registry.PlayerPCMFactory]) candidate[PlayerPCM] {
	return candidate[PlayerPCM]{
		name: entry.Name,
		open: entry.Factory.NewPlayerPCM,
	}
}

// NewPlayerAuto returns a player of the highest priority backend that
// could be initialized and pinged. If none works, a dummy player that
// discards everything is returned.
func NewPlayerAuto(
	ctx context.Context,
) *Player {
	var candidates []candidate[PlayerPCM]
	for _, entry := range registry.PlayerFactories() {
		candidates = append(candidates, playerCandidate(entry))
	}

	player, name, err := openFirst(ctx, "player", &lastPlayer, candidates)
	if err != nil {
		logger.Infof(ctx, "%v; the audio will be discarded", err)
		return &Player{
			PlayerPCM: PlayerPCMDummy{},
		}
	}
	return &Player{
		PlayerPCM: player,
		Backend:   name,
	}
}

// NewPlayerBackend returns a player of the named backend, or the same
// as NewPlayerAuto for BackendAuto.
func NewPlayerBackend(
	ctx context.Context,
	name string,
) (*Player, error) {
	if name == "" || name == BackendAuto {
		return NewPlayerAuto(ctx), nil
	}
	if name == BackendDummy {
		return &Player{
			PlayerPCM: PlayerPCMDummy{},
			Backend:   BackendDummy,
		}, nil
	}
	entry, ok := registry.PlayerFactory(name)
	if !ok {
		return nil, fmt.Errorf("unknown player backend '%s'", name)
	}
	player, _, err := openFirst(ctx, "player", nil, []candidate[PlayerPCM]{playerCandidate(entry)})
	if err != nil {
		return nil, err
	}
	return &Player{
		PlayerPCM: player,
		Backend:   name,
	}, nil
}

func (a *Player) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	bufferSize time.Duration,
	pcmReader io.Reader,
) (PlayStream, error) {
	return a.PlayerPCM.PlayPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		bufferSize,
		pcmReader,
	)
}
