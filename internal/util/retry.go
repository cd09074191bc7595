package util

// Attempt runs f up to maxTries times. It retries only when f returns an
// error for which retryable reports true, so that optimistic writes (such
// as unique-key allocation) re-derive their candidate from a fresh read on
// each pass. The last error is returned when tries run out.
func Attempt(maxTries int, retryable func(error) bool, f func() error) error {
	var err error
	for i := 0; i < maxTries; i++ {
		err = f()
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}
