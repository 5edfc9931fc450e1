/*
Package observability exposes the runtime health of the skill manager.

Metrics records Prometheus series for the tick loop and task outcomes.
RateMeter measures the achieved tick rate from the tick callback, the same
figure remote clients read as the tick heartbeat.
*/
package observability
