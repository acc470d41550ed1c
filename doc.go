// metricgen generates realistic web application metrics for demos and for
// testing dashboards and alerts. It simulates a small web shop (a frontend,
// an api gateway and three backend services, serving four Americas regions)
// and sends what it observes to Honeycomb as events, one event per data point.
//
// For every simulated step (one minute by default) it produces:
//
// - http_request_duration_seconds (histogram) and http_requests_total
// (counter) for each request, plus http_errors_total for 4xx and 5xx
// responses. Requests carry service, endpoint, method, status_code, region
// and user_agent_class labels.
//
// - db_query_duration_seconds (histogram) for each query, labeled with the
// backend service, query_type and table.
//
// - memory_usage_bytes (gauge), once per service.
//
// - active_users (gauge), once per region.
//
// Volumes follow an Americas traffic pattern computed from the UTC time:
// three peaks during the business day, a plateau around them, and a low,
// jittery overnight trickle. Weekends run at 60% of weekdays. Latencies are
// lognormal, slower for server errors and faster for the root and health pages.
//
// There are two modes. Backfill (the default) walks simulated time from
// --days ago (or --start) to now, exporting every --flushevery steps.
// Real-time mode (--realtime=N) generates a step for the current time once
// every --interval for N hours and exports after each one.
//
// Exports go out in batches of --batchsize events, paced by --batchdelay.
// Delivery is best effort: a batch the receiver rejects is logged and
// dropped, and generation carries on.
//
// All randomness comes from a single generator seeded by --seed (the dataset
// name by default), so a run can be repeated exactly.
//
// The simulated application itself can be replaced in the config file under
// "catalog"; use --writecfg to get a file with the defaults filled in.
package main
