// Package mqtt provides MQTT client connectivity for the telemetry bridge.
//
// This package manages:
//   - Connection to the broker, with auto-reconnect after the first connect
//   - Message publishing with QoS and timeouts
//   - Topic subscriptions with wildcard support and restore-on-reconnect
//   - Last Will and Testament (LWT) on the bridge status topic
//   - Topic validation and wildcard matching helpers
//
// # Architecture
//
// Field devices publish readings and actuator state to the broker; the bridge
// subscribes to them and publishes actuator commands back.
//
//	Sensors / actuator ↔ MQTT Broker ↔ Telemetry Bridge ↔ Browsers
//
// # Failure Model
//
// Connect tries exactly once and reports ErrConnectionFailed quickly so the
// caller can fall back to the simulator. Once connected, connection loss is
// handled by paho's reconnect loop and subscriptions are re-established.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    // fall back to simulator
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.MQTT.Topics.Sensor, 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(cfg.MQTT.Topics.ActuatorCommand, []byte("ON"), 1, false)
package mqtt
