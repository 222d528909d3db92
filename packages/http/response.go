package http

type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Body       []byte
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// StatusLine rebuilds the response status line, e.g. "HTTP/1.1 200 OK".
// Status already starts with the numeric code.
func (r *Response) StatusLine() string {
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	return proto + " " + r.Status
}
