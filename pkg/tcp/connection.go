package tcp

import (
	"math"
)

const (
	// initialCongestionWindow is the slow-start window in segments.
	initialCongestionWindow = 10
	// tcpSegmentSize is the assumed MSS in bytes.
	tcpSegmentSize = 1460
)

// Connection simulates bytes-to-time conversion for one logical
// connection: fixed round-trip latency, a throughput ceiling shared out
// by the scheduler, a congestion-window ramp for cold connections, and
// an extra round trip for the TLS handshake on first use.
//
// A Connection is owned by a single simulation run and is not safe for
// concurrent use.
type Connection struct {
	rtt              float64 // ms
	throughput       float64 // bytes per second
	serverLatency    float64 // ms
	ssl              bool
	warmed           bool
	congestionWindow float64 // segments
}

// NewConnection creates a cold connection.
func NewConnection(rtt, throughputBytesPerSecond, serverLatency float64, ssl bool) *Connection {
	return &Connection{
		rtt:              rtt,
		throughput:       throughputBytesPerSecond,
		serverLatency:    serverLatency,
		ssl:              ssl,
		congestionWindow: initialCongestionWindow,
	}
}

// RTT returns the connection's base round-trip time in milliseconds.
func (c *Connection) RTT() float64 { return c.rtt }

// Warmed reports whether the connection has completed a transfer and
// will skip handshake and slow-start costs.
func (c *Connection) Warmed() bool { return c.warmed }

// SetWarmed marks the connection's ramp-up as done (or resets it).
func (c *Connection) SetWarmed(warmed bool) { c.warmed = warmed }

// SetThroughput re-derives the per-round-trip byte budget as the
// scheduler redistributes bandwidth. Accumulated transfer progress is
// kept by the caller, so adjusting mid-download is safe.
func (c *Connection) SetThroughput(bytesPerSecond float64) { c.throughput = bytesPerSecond }

// SetCongestionWindow carries window growth across scheduler ticks.
func (c *Connection) SetCongestionWindow(segments float64) {
	c.congestionWindow = math.Max(segments, 1)
}

// maximumCongestionWindow is the window size at which the throughput
// ceiling, not slow start, limits transfer (bandwidth-delay product).
func (c *Connection) maximumCongestionWindow() float64 {
	bytesPerRoundTrip := c.throughput * c.rtt / 1000
	return math.Max(math.Floor(bytesPerRoundTrip/tcpSegmentSize), 1)
}

// Unbounded queries the full completion estimate instead of capping a
// tick.
var Unbounded = math.Inf(1)

// DownloadOptions bound one SimulateDownloadUntil call.
type DownloadOptions struct {
	// TimeAlreadyElapsed is virtual time this node has already spent on
	// the connection in previous ticks.
	TimeAlreadyElapsed float64
	// MaximumTimeToElapse caps how much further download time may pass.
	// Pass Unbounded to query the full completion estimate. The
	// time-to-first-byte remainder always elapses in full; callers track
	// the overshoot.
	MaximumTimeToElapse float64
}

// DownloadProgress reports what one SimulateDownloadUntil call achieved.
type DownloadProgress struct {
	TimeElapsed      float64
	BytesDownloaded  int64
	CongestionWindow float64
	RoundTrips       int
}

// SimulateDownloadUntil computes how much virtual time passes and how
// many bytes transfer within the given bound. It is callable repeatedly
// with partial progress: pass the accumulated elapsed time back in and
// a node that straddles two scheduler ticks resumes where it left off.
func (c *Connection) SimulateDownloadUntil(bytesToDownload int64, opts DownloadOptions) DownloadProgress {
	twoWayLatency := c.rtt
	oneWayLatency := twoWayLatency / 2
	maximumWindow := c.maximumCongestionWindow()

	handshakeAndRequest := oneWayLatency
	if !c.warmed {
		handshakeAndRequest = oneWayLatency + // SYN
			oneWayLatency + // SYN-ACK
			oneWayLatency // request
		if c.ssl {
			handshakeAndRequest += twoWayLatency // TLS handshake
		}
	}

	timeToFirstByte := handshakeAndRequest + c.serverLatency + oneWayLatency
	timeElapsedForTTFB := math.Max(timeToFirstByte-opts.TimeAlreadyElapsed, 0)

	maximumDownloadTime := opts.MaximumTimeToElapse - timeElapsedForTTFB

	window := math.Min(c.congestionWindow, maximumWindow)
	roundTrips := int(math.Ceil(timeToFirstByte / twoWayLatency))

	var bytesDownloaded float64
	if timeElapsedForTTFB > 0 {
		// The first window's worth of data arrives with the headers.
		bytesDownloaded = window * tcpSegmentSize
	}

	var downloadTimeElapsed float64
	for downloadTimeElapsed < maximumDownloadTime && bytesDownloaded < float64(bytesToDownload) {
		roundTrips++
		downloadTimeElapsed += twoWayLatency
		window = math.Max(math.Min(window*2, maximumWindow), 1)
		bytesDownloaded += window * tcpSegmentSize
	}

	timeElapsed := timeElapsedForTTFB + downloadTimeElapsed
	bytes := int64(math.Max(math.Min(bytesDownloaded, float64(bytesToDownload)), 0))

	return DownloadProgress{
		TimeElapsed:      timeElapsed,
		BytesDownloaded:  bytes,
		CongestionWindow: window,
		RoundTrips:       roundTrips,
	}
}

// MaximumSaturatedConnections returns how many connections the given
// bandwidth can keep busy at the minimum transfer rate of one segment
// per round trip. The scheduler caps concurrency at this value.
func MaximumSaturatedConnections(rtt, throughputBytesPerSecond float64) int {
	bytesPerConnection := tcpSegmentSize / (rtt / 1000)
	n := int(math.Floor(throughputBytesPerSecond / bytesPerConnection))
	if n < 1 {
		return 1
	}
	return n
}
