package consts

import "time"

// Tunable Options
const (
	// For Underlying Networking
	// BUFFERED_READ_BUFFSIZE is the read buffer size for buffered client connections
	BUFFERED_READ_BUFFSIZE = 16384
	// BUFFERED_WRITE_BUFFSIZE is the write buffer size for buffered client connections
	BUFFERED_WRITE_BUFFSIZE = 16384
	// CLIENT_SET_TCP_NO_DELAY = true sets client connections to TcpNoDelay
	CLIENT_SET_TCP_NO_DELAY = true
	// KCP_SOCKET_BUFFER_SIZE is the read & write buffer size of KCP sessions
	KCP_SOCKET_BUFFER_SIZE = 4 * 1024 * 1024

	// For Frames
	// MAX_FRAME_LENGTH is the maxium total length of one frame, including the length field
	MAX_FRAME_LENGTH = 512 * 1024
	// FRAME_READ_CHUNK_SIZE is the minimal buffer growth when reading frames
	FRAME_READ_CHUNK_SIZE = 4096

	// For Actors
	// DEFAULT_CALL_TIMEOUT is the default queueing timeout for ordered calls
	DEFAULT_CALL_TIMEOUT = time.Second * 10
	// TIMER_TICK_INTERVAL is the interval to tick actor timers => affect timer resolution
	TIMER_TICK_INTERVAL = time.Millisecond * 10
	// ONCE_SAVE_COUNT is the number of actors saved in one batch of the periodic save
	ONCE_SAVE_COUNT = 1000
	// SAVE_BATCH_DELAY is the pause between two batches of the periodic save
	SAVE_BATCH_DELAY = time.Second
	// SAVE_INTERVAL is the default interval of periodic saving
	SAVE_INTERVAL = time.Minute * 5
	// IDLE_CHECK_INTERVAL is the default interval of idle actor checks
	IDLE_CHECK_INTERVAL = time.Minute
	// RECYCLE_IDLE_TIME is the default idle time after which a recyclable actor is removed
	RECYCLE_IDLE_TIME = time.Minute * 15
	// CROSS_DAY_GLOBAL_WAIT is the wait budget of global actors when crossing day
	CROSS_DAY_GLOBAL_WAIT = time.Second * 60
	// CROSS_DAY_SHARDED_WAIT is the wait budget of non-player sharded actors when crossing day
	CROSS_DAY_SHARDED_WAIT = time.Second * 120

	// For Storage & KVDB
	// STORAGE_OPERATION_WARN_THRESHOLD is the opmon warn threshold for storage operations
	STORAGE_OPERATION_WARN_THRESHOLD = time.Second
	// KVDB_OPERATION_WARN_THRESHOLD is the opmon warn threshold for kvdb operations
	KVDB_OPERATION_WARN_THRESHOLD = time.Second
	// DISPATCH_WARN_THRESHOLD is the opmon warn threshold for handling one message
	DISPATCH_WARN_THRESHOLD = time.Millisecond * 100
	// KVDB_OP_QUEUE_MAX_LEN is the max number of pending kvdb operations
	KVDB_OP_QUEUE_MAX_LEN = 10000

	// For Operation Monitor
	// OPMON_DUMP_INTERVAL is the interval to print opmon infos to output
	OPMON_DUMP_INTERVAL = 0

	// For Shutdown
	// SHUTDOWN_WAIT is the max time to wait for actors to finish when the server stops
	SHUTDOWN_WAIT = time.Second * 30

	// ADMIN_COMMAND_TIMEOUT is the max time of one admin command
	ADMIN_COMMAND_TIMEOUT = time.Second * 60
	// CROSS_DAY_HOUR is the hour of the day when cross day events are raised
	CROSS_DAY_HOUR = 0
)

// Debug Options
const (
	// DEBUG_PACKETS prints frame send/recv debug logs
	DEBUG_PACKETS = false
	// DEBUG_SAVE_LOAD prints save & load debug logs
	DEBUG_SAVE_LOAD = false
	// DEBUG_ACTORS prints actor creation & removal debug logs
	DEBUG_ACTORS = false
)
