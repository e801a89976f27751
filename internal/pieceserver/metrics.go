package pieceserver

import "expvar"

var (
	metricRequests    = expvar.NewInt("pieceserver_requests_total")
	metricPieces      = expvar.NewInt("pieceserver_pieces_served_total")
	metricRateLimited = expvar.NewInt("pieceserver_rate_limited_total")
	metricCorrupted   = expvar.NewInt("pieceserver_corrupted_total")
)
