// Package tempo models EDF Tempo days and fetches them from the RTE open-data feed.
//
// The feed speaks BLUE/WHITE/RED; everything this bot emits uses the French
// vocabulary (bleu/blanc/rouge, BLEU/BLANC/ROUGE on MQTT).
package tempo
