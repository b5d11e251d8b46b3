package t2i

import "iter"

// Collect drains seq and returns every output, or only the terminal error.
func Collect(seq iter.Seq[Result]) ([]Result, *Error) {
	var out []Result
	for r := range seq {
		if r.Err != nil {
			return nil, r.Err
		}
		out = append(out, r)
	}
	return out, nil
}

// Stream forwards each item of seq to push as soon as it is available. The
// terminal error is pushed like any other item and ends the stream; Stream
// then returns it. A push failure also ends the stream and is returned.
func Stream(seq iter.Seq[Result], push func(Result) error) error {
	for r := range seq {
		if err := push(r); err != nil {
			return err
		}
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
