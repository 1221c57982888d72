package protocol

const heartbeatSize = 8

var HeartbeatRange = Range{Min: heartbeatSize, Max: heartbeatSize}

// Heartbeat advertises how far the sender's ledger has progressed.
type Heartbeat struct {
	SolidMilestoneIndex    uint32
	SnapshotMilestoneIndex uint32
}

func (Heartbeat) ID() uint8 { return HeartbeatID }

func (Heartbeat) Size() int { return heartbeatSize }

func (m Heartbeat) Encode() []byte {
	out := make([]byte, 0, heartbeatSize)
	out = appendUint32(out, m.SolidMilestoneIndex)
	return appendUint32(out, m.SnapshotMilestoneIndex)
}

func DecodeHeartbeat(b []byte) (Heartbeat, error) {
	if err := checkLength(HeartbeatID, HeartbeatRange, b); err != nil {
		return Heartbeat{}, err
	}
	var (
		m   Heartbeat
		err error
	)
	r := newFieldReader(HeartbeatID, b)
	if m.SolidMilestoneIndex, err = r.uint32("solid_milestone_index"); err != nil {
		return Heartbeat{}, err
	}
	if m.SnapshotMilestoneIndex, err = r.uint32("snapshot_milestone_index"); err != nil {
		return Heartbeat{}, err
	}
	return m, nil
}
