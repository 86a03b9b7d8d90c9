package video

import "errors"

// ErrUnreadableStream classifies inputs ffmpeg cannot open or decode.
// Handlers map it to a bad request, unlike infrastructure failures.
var ErrUnreadableStream = errors.New("unreadable video stream")
