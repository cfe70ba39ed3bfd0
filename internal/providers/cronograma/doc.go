/*
Package cronograma retrieves class timetables from the university portal.

The portal has no API. Each fetch drives a browser page through the
search form and captures the JSON the page posts back:

	navigate -> wait for Programa, Sede, recurso -> select values
	         -> locate #search -> click and capture buscarCronograma -> decode

Protocol is that sequence. Fetcher wraps it with bounded retries and
backoff and closes the page on every path. Service puts the result cache
and circuit breaker in front of the Fetcher.

Errors are sentinels wrapped with context; match them with errors.Is:

	data, cached, err := svc.Get(ctx, q)
	if errors.Is(err, cronograma.ErrMissingControl) {
		// portal markup changed
	}
*/
package cronograma
