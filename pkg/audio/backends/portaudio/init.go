package portaudio

import (
	"github.com/xaionaro-go/noisecancel/pkg/audio/registry"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

const (
	Name     = "portaudio"
	Priority = 60
)

func init() {
	registry.RegisterPlayerFactory(Name, Priority, PlayerPCMFactory{})
	registry.RegisterRecorderFactory(Name, Priority, RecorderPCMFactory{})
}

type PlayerPCMFactory struct{}

func (PlayerPCMFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	return NewPlayerPCM()
}

type RecorderPCMFactory struct{}

func (RecorderPCMFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	return NewRecorderPCM()
}
