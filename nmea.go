package nmea

import (
	"time"
)

/*
 * Notes on the NMEA 2000 packet structure
 * ---------------------------------------
 *
 * http://www.nmea.org/Assets/pgn059392.pdf tells us that:
 * - All messages shall set the reserved bit in the CAN ID field to zero on transmit.
 * - Data field reserve bits or reserve bytes shall be filled with ones. i.e. a reserve
 *   byte will be set to a hex value of FF, a single reserve bit would be set to a value of 1.
 * - Data field extra bytes shall be filled with a hex value of FF.
 * - If the PGN in a Command or Request is not recognized by the destination it shall
 *   reply with the PGN 059392 ACK or NACK message using a destination specific address.
 */

/*
 * Some packets include a "SID", explained by Maretron as follows:
 * SID: The sequence identifier field is used to tie related PGNs together. For example,
 * the DST100 will transmit identical SIDs for Speed (PGN 128259) and Water depth
 * (128267) to indicate that the readings are linked together (i.e., the data from each
 * PGN was taken at the same time although reported at slightly different times).
 */

// FastRawPacketMaxSize is maximum size of fast packet multiple packets total length.
// NMEA 2000 uses the 8 'data' bytes as follows: data[0] is an 'order' that increments, or not (depending a bit on
// implementation). If the size of the packet <= 7 then the data follows in data[1..7]. If the size of the packet > 7
// then the next byte data[1] is the size of the payload and data[0] is divided into 5 bits index into the fast
// packet, and 3 bits 'order' that increases. This means that for 'fast packets' the first bucket (sub-packet)
// contains 6 payload bytes and 7 for remaining. Since the max index is 31, the maximal payload is 6 + 31*7 = 223
// bytes.
const FastRawPacketMaxSize = 223

// AddressGlobal is the broadcast/global NMEA 2000 address (0xff), used as the destination address for PDU2
// (broadcast) messages and for requests addressed to all nodes.
const AddressGlobal = 0xff

// RawFrame is a single raw CAN bus frame as read from (or written to) the wire, before fast-packet/ISO-TP
// reassembly. Length is at most 8 for classic CAN 2.0B frames.
type RawFrame struct {
	Time   time.Time
	Header CanBusHeader
	Length uint8
	Data   [8]byte
}

// RawMessage is a fully reassembled NMEA 2000 message (single-frame, fast-packet or ISO-TP) ready for PGN decoding.
// Data length can exceed 8 bytes for fast-packet/ISO-TP messages, up to FastRawPacketMaxSize.
type RawMessage struct {
	// Time is when the message was read from the NMEA bus. Filled in by the reader/assembler.
	Time   time.Time
	Header CanBusHeader
	Data   []byte
}

// Message is a decoded NMEA 2000 message: its CAN bus header plus the extracted field values for the PGN that
// matched it.
type Message struct {
	Header CanBusHeader
	Fields FieldValues
	// NodeNAME is the 64-bit NAME of the node that sent this message, when known from a prior ISO address claim
	// (PGN 60928). Zero when the sender's NAME has not been observed yet.
	NodeNAME uint64
}

// couldBeFastPacket reports whether pgn is known to be carried as a fast-packet (as opposed to a classic
// single-frame or ISO-TP multi-packet) message. Used by fast-packet assemblers to decide whether to route an
// incoming frame through fast-packet reassembly at all.
func couldBeFastPacket(pgn uint32) bool {
	switch pgn {
	case 59904, 59392, 60928, 126208, 126464, 126996, 126998:
		return false
	}
	header := CanBusHeader{PGN: pgn}
	switch header.ProprietaryType() {
	case "PDU1 (addressed) fast-packet", "PDU2 (broadcast) fast-packet":
		return true
	}
	return pgn >= 126720
}
