package pulseaudio

import (
	"github.com/xaionaro-go/noisecancel/pkg/audio/registry"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

const (
	Name     = "pulseaudio"
	Priority = 100
)

func init() {
	registry.RegisterPlayerFactory(Name, Priority, PlayerPCMPulseFactory{})
	registry.RegisterRecorderFactory(Name, Priority, RecorderPCMPulseFactory{})
}

type PlayerPCMPulseFactory struct{}

func (PlayerPCMPulseFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	return NewPlayerPCM()
}

type RecorderPCMPulseFactory struct{}

func (RecorderPCMPulseFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	return NewRecorderPCM()
}
