// Package influxdb records device telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Three measurements
// are written:
//   - switchbot_state: characteristics after each refresh or confirmed write
//   - switchbot_flush: one point per write flush with transport and attempts
//   - switchbot_bridge: bridge counters written with the health message
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("1A23B456789A", "Bot",
//	    map[string]interface{}{"On": true}, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async write errors are delivered to SetOnError.
package influxdb
