// Package ch10test builds decoded packets for tests.
package ch10test

import (
	"encoding/binary"
	"time"

	"github.com/roman-kulish/firefly/internal/ch10"
)

// Epoch is the base time of generated packets.
var Epoch = time.Date(2019, 6, 12, 15, 30, 0, 0, time.UTC)

// At returns Epoch plus the given number of milliseconds.
func At(ms int) time.Time {
	return Epoch.Add(time.Duration(ms) * time.Millisecond)
}

// BCMessage builds a BC to RT (receive) or RT to BC (transmit) message with
// the given data words.
func BCMessage(rt, sa uint8, dir ch10.Direction, t time.Time, words ...uint16) ch10.Message {
	return ch10.Message{
		Command1: ch10.CommandWord{RT: rt, Direction: dir, SubAddress: sa, Count: uint8(len(words) & 0x1f)},
		Time:     t,
		RelTime:  t.Sub(Epoch).Nanoseconds() / 100,
		Words:    words,
	}
}

// RT2RTMessage builds an RT to RT message from txRT/txSA to rxRT/rxSA.
func RT2RTMessage(txRT, txSA, rxRT, rxSA uint8, t time.Time, words ...uint16) ch10.Message {
	count := uint8(len(words) & 0x1f)
	return ch10.Message{
		Command1: ch10.CommandWord{RT: rxRT, Direction: ch10.Receive, SubAddress: rxSA, Count: count},
		Command2: &ch10.CommandWord{RT: txRT, Direction: ch10.Transmit, SubAddress: txSA, Count: count},
		Status:   ch10.BlockStatus{RT2RT: true},
		Time:     t,
		RelTime:  t.Sub(Epoch).Nanoseconds() / 100,
		Words:    words,
	}
}

// BusPacket wraps messages in a MIL1553Fmt1 packet on channel ch.
func BusPacket(ch uint16, msgs ...ch10.Message) ch10.Packet {
	p := ch10.Packet{ChannelID: ch, DataType: ch10.MIL1553Fmt1, Version: 6, Messages: msgs}
	if len(msgs) > 0 {
		p.Time = msgs[0].Time
		p.RelTime = msgs[0].RelTime
	}
	return p
}

// VideoPacket builds a VideoFmt0 packet with n transport stream frames, each
// filled with its index.
func VideoPacket(ch uint16, t time.Time, n int) ch10.Packet {
	frames := make([][]byte, n)
	for i := range frames {
		frame := make([]byte, ch10.VideoFrameSize)
		frame[0] = 0x47
		for j := 1; j < len(frame); j++ {
			frame[j] = byte(i)
		}
		frames[i] = frame
	}
	return ch10.Packet{ChannelID: ch, DataType: ch10.VideoFmt0, Time: t, Frames: frames}
}

// TMATSPacket builds a TMATS packet announcing RCC version rcc.
func TMATSPacket(t time.Time, rcc uint8, text string) ch10.Packet {
	data := make([]byte, 4, 4+len(text))
	binary.LittleEndian.PutUint32(data, uint32(rcc))
	data = append(data, text...)
	return ch10.Packet{DataType: ch10.TMATS, Time: t, Data: data}
}

// TimePacket builds an IRIG time packet.
func TimePacket(t time.Time) ch10.Packet {
	return ch10.Packet{ChannelID: 1, DataType: ch10.IRIGTime, Time: t, Data: make([]byte, 12)}
}

// IndexPacket builds a recording index packet.
func IndexPacket(t time.Time) ch10.Packet {
	return ch10.Packet{DataType: ch10.RecordingIndex, Time: t, Data: make([]byte, 8)}
}
