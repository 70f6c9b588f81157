package oto

import (
	"github.com/xaionaro-go/noisecancel/pkg/audio/registry"
	"github.com/xaionaro-go/noisecancel/pkg/audio/types"
)

const (
	Name     = "oto"
	Priority = 50
)

func init() {
	registry.RegisterPlayerFactory(Name, Priority, PlayerPCMOtoFactory{})
}

type PlayerPCMOtoFactory struct{}

func (PlayerPCMOtoFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	return NewPlayerPCM(), nil
}
