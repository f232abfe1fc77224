package socketcan

import (
	"context"
	"errors"
	"github.com/nmeadecode/canboat"
	"time"
)

// DeviceConfig configures a SocketCAN Device.
type DeviceConfig struct {
	// InterfaceName is the SocketCAN interface name. For example: can0
	InterfaceName string
	// FastPacketAssembler reassembles Fast-Packet/ISO-TP frames into complete RawMessage values. Raw CAN frames read
	// off a SocketCAN interface are single 8-byte frames; when FastPacketAssembler is nil, ReadRawMessage returns each
	// frame as its own RawMessage without reassembly.
	FastPacketAssembler nmea.Assembler
	// ReceiveDataTimeout limits how long reads are allowed to return no data before ReadRawMessage gives up.
	ReceiveDataTimeout time.Duration
}

type Device struct {
	conn *Connection

	// ifName is SocketCAN interface name. For example: can0
	ifName string

	assembler nmea.Assembler

	// receiveDataTimeout is to limit amount of time reads can result no data. to timeout the connection when there is no
	// interaction in bus. This is different from for example serial device readTimeout which limits how much time Read
	// call blocks but we want to Reads block small amount of time to be able to check if context was cancelled during read
	// but at the same time we want to be able to detect when there are no coming from bus for excessive amount of time.
	receiveDataTimeout time.Duration

	timeNow func() time.Time
}

func NewDevice(config DeviceConfig) *Device {
	receiveDataTimeout := config.ReceiveDataTimeout
	if receiveDataTimeout <= 0 {
		receiveDataTimeout = 5 * time.Second
	}
	return &Device{
		conn: nil,

		ifName:             config.InterfaceName,
		assembler:          config.FastPacketAssembler,
		timeNow:            time.Now,
		receiveDataTimeout: receiveDataTimeout,
	}
}

func (d *Device) Close() error {
	return d.conn.Close()
}

func (d *Device) Initialize() error {
	conn, err := NewConnection(d.ifName)
	if err != nil {
		return err
	}
	d.conn = conn

	return nil
}

func (d *Device) WriteRawMessage(ctx context.Context, msg nmea.RawMessage) error {
	return errors.New("not implemented") // FIXME: implement
}

func (d *Device) ReadRawMessage(ctx context.Context) (nmea.RawMessage, error) {
	start := d.timeNow()
	var result nmea.RawMessage
	for {
		select {
		case <-ctx.Done():
			return nmea.RawMessage{}, ctx.Err()
		default:
		}

		if err := d.conn.SetReadTimeout(50 * time.Millisecond); err != nil { // max 50ms block time for read per iteration
			return nmea.RawMessage{}, err
		}
		frame, err := d.conn.ReadRawFrame()

		now := d.timeNow()
		// a read timeout is not returned immediately: the deadline is set again on the next iteration and we give up
		// only when no frame has arrived within receiveDataTimeout. Any other read error is returned.
		if err != nil {
			if errors.Is(err, errReadTimeout) {
				if now.Sub(start) > d.receiveDataTimeout {
					return nmea.RawMessage{}, err
				}
				continue
			}
			return nmea.RawMessage{}, err
		}

		if d.assembler == nil {
			return nmea.RawMessage{
				Time:   frame.Time,
				Header: frame.Header,
				Data:   append([]byte{}, frame.Data[:frame.Length]...),
			}, nil
		}
		if d.assembler.Assemble(frame, &result) {
			return result, nil
		}
		start = now // reset timeout window, we are actively receiving frames of a message
	}
}
