// Package channel discovers the logical channels of a recording and how many
// entries each of them holds.
package channel

import (
	"fmt"

	"github.com/roman-kulish/firefly/internal/ch10"
)

// Endpoint is one side of a 1553 transfer.
type Endpoint struct {
	RT         uint8
	SubAddress uint8
}

// Key identifies a logical channel. For 1553 transfers a nil Peer means the
// bus controller is the other side. Video keys only use Type and ChannelID.
type Key struct {
	Type      ch10.DataType
	ChannelID uint16
	Local     Endpoint
	Direction ch10.Direction
	Peer      *Endpoint
}

// Path returns the canonical location of the channel, for example
// "1553/Ch_11/RT_6/SA_29/T/BC" or "Video Format 0/Ch_3".
func (k Key) Path() string {
	if k.Type == ch10.VideoFmt0 {
		return fmt.Sprintf("%s/Ch_%d", k.Type, k.ChannelID)
	}

	p := fmt.Sprintf("%s/Ch_%d/RT_%d/SA_%d/%s/", k.Type, k.ChannelID, k.Local.RT, k.Local.SubAddress, k.Direction)
	if k.Peer == nil {
		return p + "BC"
	}
	return p + fmt.Sprintf("RT_%d/SA_%d", k.Peer.RT, k.Peer.SubAddress)
}

func (k Key) String() string {
	return k.Path()
}

// VideoKey returns the key of a video format 0 channel.
func VideoKey(channelID uint16) Key {
	return Key{Type: ch10.VideoFmt0, ChannelID: channelID}
}

// Keys returns the primary key of a 1553 message and, for RT to RT
// transfers, the receiver side alias. The primary key of an RT to RT transfer
// is the transmitter side. Keys are derived from the command word values as
// recorded, whether or not their transfer bits are consistent.
func Keys(channelID uint16, msg *ch10.Message) (primary Key, alias *Key) {
	if !msg.IsRT2RT() {
		cmd := msg.Command1
		return Key{
			Type:      ch10.MIL1553Fmt1,
			ChannelID: channelID,
			Local:     Endpoint{RT: cmd.RT, SubAddress: cmd.SubAddress},
			Direction: cmd.Direction,
		}, nil
	}

	rx := Endpoint{RT: msg.Command1.RT, SubAddress: msg.Command1.SubAddress}
	tx := Endpoint{RT: msg.Command2.RT, SubAddress: msg.Command2.SubAddress}
	primary = Key{Type: ch10.MIL1553Fmt1, ChannelID: channelID, Local: tx, Direction: ch10.Transmit, Peer: &rx}
	alias = &Key{Type: ch10.MIL1553Fmt1, ChannelID: channelID, Local: rx, Direction: ch10.Receive, Peer: &tx}
	return primary, alias
}

// DirectionAnomaly describes an RT to RT message whose command words do not
// read "receive" then "transmit".
type DirectionAnomaly struct {
	FirstNotReceive   bool
	SecondNotTransmit bool
}

// CheckDirections validates the transfer bits of an RT to RT message.
func CheckDirections(msg *ch10.Message) (DirectionAnomaly, bool) {
	if !msg.IsRT2RT() {
		return DirectionAnomaly{}, true
	}
	a := DirectionAnomaly{
		FirstNotReceive:   msg.Command1.Direction != ch10.Receive,
		SecondNotTransmit: msg.Command2.Direction != ch10.Transmit,
	}
	return a, !a.FirstNotReceive && !a.SecondNotTransmit
}
