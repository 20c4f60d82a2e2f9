package storage

import (
	"github.com/vmihailenco/msgpack/v5"
)

// DBSession is the persisted form of models.Session.
// There is only ever one, so the key is fixed.
type DBSession struct {
	Token               string `msgpack:"token"`
	DisplayName         string `msgpack:"displayName"`
	AvatarURL           string `msgpack:"avatarUrl"`
	MissionSuccessCount int    `msgpack:"missionSuccessCount"`
	MissionJoinCount    int    `msgpack:"missionJoinCount"`
}

func (s *DBSession) Key() []byte {
	return keySession
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}
