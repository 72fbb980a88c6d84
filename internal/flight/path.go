package flight

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/storage"
)

// BC stands in for the bus controller as the receiving end of a transfer.
const BC = "BC"

var (
	ErrNoChannel       = errors.New("1553 channel not given")
	ErrFromSAWithoutRT = errors.New(`"from_sa" given without "from_rt"`)
	ErrToSAWithoutRT   = errors.New(`"to_sa" given without "to_rt"`)
	ErrNoFromSA        = errors.New(`"from_sa" not given`)
	ErrNoToSA          = errors.New(`"to_sa" not given`)
	ErrUnsupportedType = errors.New("unsupported packet type")
)

// Location selects stored raw data. Empty fields are not given. ToRT may be BC
// for transfers to the bus controller.
type Location struct {
	Channel string
	FromRT  string
	FromSA  string
	ToRT    string
	ToSA    string
}

// ChannelPath returns the store location of raw data of the given packet
// type. A partial 1553 location yields the enclosing group, for example only
// a channel gives "chapter11_data/1553/Ch_11".
func ChannelPath(dataType ch10.DataType, loc Location) (string, error) {
	top := storage.RawGroup + "/" + dataType.String()

	switch dataType {
	case ch10.TMATS:
		return storage.TMATSBlobPath, nil

	case ch10.VideoFmt0:
		if loc.Channel == "" {
			return top, nil
		}
		ch, err := number("channel", loc.Channel)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s/Ch_%d", top, ch), nil

	case ch10.MIL1553Fmt1:
		return busPath(top, loc)

	default:
		return "", fmt.Errorf("%s: %w", dataType, ErrUnsupportedType)
	}
}

func busPath(top string, loc Location) (string, error) {
	if loc.Channel == "" && (loc.FromRT != "" || loc.FromSA != "" || loc.ToRT != "" || loc.ToSA != "") {
		return "", ErrNoChannel
	}
	if loc.FromSA != "" && loc.FromRT == "" {
		return "", ErrFromSAWithoutRT
	}
	if loc.ToSA != "" && loc.ToRT == "" {
		return "", ErrToSAWithoutRT
	}
	if loc.Channel == "" {
		return top, nil
	}

	ch, err := number("channel", loc.Channel)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/Ch_%d", top, ch)

	switch {
	case loc.FromRT != "" && loc.ToRT != "":
		if loc.FromSA == "" {
			return "", ErrNoFromSA
		}
		if loc.ToSA == "" && loc.ToRT != BC {
			return "", ErrNoToSA
		}
		rt, sa, err := endpoint("from", loc.FromRT, loc.FromSA)
		if err != nil {
			return "", err
		}
		path += fmt.Sprintf("/RT_%d/SA_%d/T", rt, sa)
		if loc.ToRT == BC {
			return path + "/BC", nil
		}
		rt, sa, err = endpoint("to", loc.ToRT, loc.ToSA)
		if err != nil {
			return "", err
		}
		return path + fmt.Sprintf("/RT_%d/SA_%d", rt, sa), nil

	case loc.FromRT != "":
		rt, err := number("from_rt", loc.FromRT)
		if err != nil {
			return "", err
		}
		path += fmt.Sprintf("/RT_%d", rt)
		if loc.FromSA == "" {
			return path, nil
		}
		sa, err := number("from_sa", loc.FromSA)
		if err != nil {
			return "", err
		}
		return path + fmt.Sprintf("/SA_%d", sa), nil

	case loc.ToRT != "":
		if loc.ToSA == "" {
			return "", ErrNoToSA
		}
		rt, sa, err := endpoint("to", loc.ToRT, loc.ToSA)
		if err != nil {
			return "", err
		}
		return path + fmt.Sprintf("/RT_%d/SA_%d/R/BC", rt, sa), nil
	}
	return path, nil
}

func endpoint(side, rt, sa string) (int, int, error) {
	r, err := number(side+"_rt", rt)
	if err != nil {
		return 0, 0, err
	}
	s, err := number(side+"_sa", sa)
	if err != nil {
		return 0, 0, err
	}
	return r, s, nil
}

func number(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q: invalid %s", value, name)
	}
	return n, nil
}
